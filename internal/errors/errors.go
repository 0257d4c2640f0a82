// Package errors provides the structured error type (BuildError) used for
// category-based classification across the build pipeline and CLI.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory classifies a BuildError for reporting and exit handling.
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Content processing errors
	CategoryContent  ErrorCategory = "content"
	CategoryPlugin   ErrorCategory = "plugin"
	CategoryImage    ErrorCategory = "image"
	CategoryLink     ErrorCategory = "link"
	CategoryTemplate ErrorCategory = "template"

	// External and infrastructure errors
	CategoryNetwork    ErrorCategory = "network"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops the build
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded output
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// BuildError is a structured error with category, severity, and context.
type BuildError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for a BuildError.
type ContextFields map[string]any

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// WithContext adds a context key/value to the error.
func (e *BuildError) WithContext(key string, value any) *BuildError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a BuildError.
func New(category ErrorCategory, severity ErrorSeverity, message string) *BuildError {
	return &BuildError{Category: category, Severity: severity, Message: message}
}

// Newf creates a BuildError with a formatted message.
func Newf(category ErrorCategory, severity ErrorSeverity, format string, args ...any) *BuildError {
	return &BuildError{Category: category, Severity: severity, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a BuildError that wraps an existing error.
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *BuildError {
	return &BuildError{Category: category, Severity: severity, Message: message, Cause: err}
}

// WrapError wraps an existing error at SeverityError.
func WrapError(err error, category ErrorCategory, message string) *BuildError {
	return &BuildError{Category: category, Severity: SeverityError, Message: message, Cause: err}
}

// ConfigError creates a fatal configuration error.
func ConfigError(message string) *BuildError {
	return &BuildError{Category: CategoryConfig, Severity: SeverityFatal, Message: message}
}

// ConfigErrorf creates a fatal configuration error with a formatted message.
func ConfigErrorf(format string, args ...any) *BuildError {
	return &BuildError{Category: CategoryConfig, Severity: SeverityFatal, Message: fmt.Sprintf(format, args...)}
}

// ValidationError creates a validation error.
func ValidationError(message string) *BuildError {
	return &BuildError{Category: CategoryValidation, Severity: SeverityError, Message: message}
}

// IsCategory reports whether err (or anything it wraps) carries the category.
func IsCategory(err error, category ErrorCategory) bool {
	var be *BuildError
	if stderrors.As(err, &be) {
		return be.Category == category
	}
	return false
}

// IsFatal reports whether err carries fatal severity.
func IsFatal(err error) bool {
	var be *BuildError
	if stderrors.As(err, &be) {
		return be.Severity == SeverityFatal
	}
	return false
}

// GetCategory extracts the category from an error, defaulting to CategoryInternal.
func GetCategory(err error) ErrorCategory {
	var be *BuildError
	if stderrors.As(err, &be) {
		return be.Category
	}
	return CategoryInternal
}
