package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"
	_ "go.uber.org/automaxprocs"

	"git.home.luguber.info/inful/sitebuilder/internal/builder"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/server"
	"git.home.luguber.info/inful/sitebuilder/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		FailFast bool `help:"Abort the build on the first page failure"`
	} `cmd:"" help:"Build the site once and exit"`

	Serve struct{} `cmd:"" help:"Build the site, serve it, and rebuild on changes"`

	Init struct {
		Force bool `help:"Overwrite existing scaffold files"`
	} `cmd:"" help:"Scaffold a new site in the current directory"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	switch ctx.Command() {
	case "build":
		cfg := loadConfig()
		if CLI.Build.FailFast {
			cfg.Build.FailFast = true
		}
		logger := setupLogging(cfg)
		if err := runBuild(cfg, logger); err != nil {
			adapter := errors.NewCLIErrorAdapter(CLI.Verbose, logger)
			adapter.Report(err)
			os.Exit(adapter.ExitCodeFor(err))
		}
	case "serve":
		cfg := loadConfig()
		logger := setupLogging(cfg)
		if err := runServe(cfg, logger); err != nil {
			adapter := errors.NewCLIErrorAdapter(CLI.Verbose, logger)
			adapter.Report(err)
			os.Exit(adapter.ExitCodeFor(err))
		}
	case "init":
		if err := runInit(CLI.Config, CLI.Init.Force); err != nil {
			fmt.Fprintln(os.Stderr, "init failed:", err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version.String())
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		adapter := errors.NewCLIErrorAdapter(CLI.Verbose, nil)
		adapter.Report(err)
		os.Exit(adapter.ExitCodeFor(err))
	}
	return cfg
}

// setupLogging builds the process logger from the config, with --verbose
// forcing debug level, and installs it as the slog default.
func setupLogging(cfg *config.Config) *slog.Logger {
	level := cfg.Logging.Level.SlogLevel()
	if CLI.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Logging.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func runBuild(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b, err := builder.New(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("close builder failed", slog.Any("error", err))
		}
	}()

	result, err := b.Build(ctx)
	if err != nil {
		return err
	}
	if result.Status == builder.StatusWarning {
		logger.Warn("build finished with page failures", slog.Int("failed", result.Failed))
	}
	return nil
}

func runServe(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		rec metrics.Recorder = metrics.NoopRecorder{}
		reg *prom.Registry
	)
	if cfg.Dev.Metrics {
		reg = prom.NewRegistry()
		rec = metrics.NewPrometheusRecorder(reg)
	}

	srv, err := server.New(cfg, CLI.Config, logger, rec, reg)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
