package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for
// the command line entrypoint.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor determines the exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var be *BuildError
	if stderrors.As(err, &be) {
		return a.exitCodeFromBuildError(be)
	}
	return 1
}

func (a *CLIErrorAdapter) exitCodeFromBuildError(err *BuildError) int {
	switch err.Category {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryConfig:
		return 7 // Configuration error
	case CategoryNetwork:
		return 8 // External system error
	case CategoryContent, CategoryPlugin, CategoryImage, CategoryLink, CategoryTemplate, CategoryFileSystem:
		return 11 // Build error
	case CategoryInternal:
		return 10 // Internal error
	default:
		return 1 // General error
	}
}

// Report logs the error and writes a one-line summary to stderr. In verbose
// mode the structured context fields are included.
func (a *CLIErrorAdapter) Report(err error) {
	if err == nil {
		return
	}
	var be *BuildError
	if stderrors.As(err, &be) {
		attrs := []any{slog.String("category", string(be.Category)), slog.String("severity", string(be.Severity))}
		if a.verbose {
			for k, v := range be.Context {
				attrs = append(attrs, slog.Any(k, v))
			}
		}
		a.logger.Error(be.Message, attrs...)
		fmt.Fprintf(os.Stderr, "error: %s\n", be.Error())
		return
	}
	a.logger.Error(err.Error())
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}
