// Package builder orchestrates the staged site build: discover sources, run
// the per-page plugin pipeline concurrently, run cross-page build plugins,
// render templates into the output tree, copy static assets, and write
// feeds. It is the single execution path shared by the build command and the
// dev server.
package builder

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/feeds"
	"git.home.luguber.info/inful/sitebuilder/internal/links"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/observability"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
	"git.home.luguber.info/inful/sitebuilder/internal/plugins"
	"git.home.luguber.info/inful/sitebuilder/internal/templates"
	"git.home.luguber.info/inful/sitebuilder/internal/version"
)

// Status is the overall outcome of one build.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusWarning  Status = "warning" // some pages failed, build continued
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Result summarizes one build execution.
type Result struct {
	BuildID     string
	Status      Status
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Pages       int // sources discovered (or changed, for incremental)
	Written     int // output documents written
	Failed      int // pages dropped by pipeline or render errors
	Scratch     int // pages processed but not written
	Incremental bool
}

// Builder holds the long-lived build machinery: the instantiated plugin
// chains plus the page set and template engine retained from the last full
// build, which incremental rebuilds work against. Safe for use from one
// goroutine at a time per method call; builds are serialized internally.
type Builder struct {
	cfg    *config.Config
	logger *slog.Logger
	rec    metrics.Recorder

	manager *plugin.Manager
	runner  *plugin.BuildRunner
	urls    *links.URLBuilder
	matcher *plugin.Matcher
	feeds   *feeds.Generator

	mu     sync.Mutex
	pages  []*page.Context
	engine *templates.Engine
}

// New validates the plugin configuration and instantiates both plugin
// chains. Configuration problems fail here, before any page is touched.
func New(cfg *config.Config, logger *slog.Logger, rec metrics.Recorder) (*Builder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	reg := plugin.NewRegistry()
	plugins.Register(reg)

	deps := plugin.Deps{Config: cfg, Logger: logger, Metrics: rec}
	manager, err := plugin.NewManager(reg, deps, cfg.Notes.Plugins)
	if err != nil {
		return nil, err
	}
	runner, err := plugin.NewBuildRunner(reg, deps, cfg.Build.Plugins)
	if err != nil {
		_ = manager.Close()
		return nil, err
	}

	matcher := plugin.NewMatcher(logger)
	return &Builder{
		cfg:     cfg,
		logger:  logger,
		rec:     rec,
		manager: manager,
		runner:  runner,
		urls:    links.NewURLBuilder(cfg.Templates, matcher),
		matcher: matcher,
		feeds:   feeds.NewGenerator(cfg.Site, cfg.Feeds, logger),
	}, nil
}

// Close releases plugin resources. Call once the builder is done for good,
// not between rebuilds.
func (b *Builder) Close() error {
	return b.manager.Close()
}

// Build runs the full staged build: discover, process, build plugins,
// render, static, feeds.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buildLocked(ctx)
}

func (b *Builder) buildLocked(ctx context.Context) (*Result, error) {
	result := &Result{BuildID: uuid.NewString(), StartTime: time.Now()}
	ctx = observability.WithBuildID(ctx, result.BuildID)
	observability.InfoContext(ctx, "build started",
		slog.String("source", b.cfg.Paths.Source),
		slog.String("output", b.cfg.Paths.Output))

	if b.cfg.Build.CleanOutput {
		if err := os.RemoveAll(b.cfg.Paths.Output); err != nil {
			return b.finish(ctx, result, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "clean output directory"))
		}
	}
	if err := os.MkdirAll(b.cfg.Paths.Output, 0o755); err != nil {
		return b.finish(ctx, result, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "create output directory"))
	}

	var pages []*page.Context
	err := b.runStage(ctx, "discover", func(ctx context.Context) error {
		var err error
		pages, err = b.discoverPages(ctx)
		return err
	})
	if err != nil {
		return b.finish(ctx, result, err)
	}
	result.Pages = len(pages)
	if len(pages) == 0 {
		observability.WarnContext(ctx, "no source files found",
			slog.String("source", b.cfg.Paths.Source))
	}

	var processed []*page.Context
	err = b.runStage(ctx, "process", func(ctx context.Context) error {
		var err error
		processed, err = b.processPages(ctx, pages, result)
		return err
	})
	if err != nil {
		return b.finish(ctx, result, err)
	}

	err = b.runStage(ctx, "build_plugins", func(ctx context.Context) error {
		return b.runner.Execute(ctx, processed)
	})
	if err != nil {
		return b.finish(ctx, result, err)
	}

	var engine *templates.Engine
	err = b.runStage(ctx, "render", func(ctx context.Context) error {
		var err error
		engine, err = templates.NewEngine(b.cfg.Paths.Templates, b.logger)
		if err != nil {
			return err
		}
		return b.renderPages(ctx, engine, result, processed, page.NewAccessor(processed))
	})
	if err != nil {
		return b.finish(ctx, result, err)
	}

	err = b.runStage(ctx, "static", func(ctx context.Context) error {
		return b.copyStatic(ctx)
	})
	if err != nil {
		return b.finish(ctx, result, err)
	}

	err = b.runStage(ctx, "feeds", func(ctx context.Context) error {
		return b.feeds.WriteAll(b.cfg.Paths.Output, page.NewAccessor(processed), time.Now())
	})
	if err != nil {
		return b.finish(ctx, result, err)
	}

	b.pages = processed
	b.engine = engine
	return b.finish(ctx, result, nil)
}

// runStage wraps one build stage with stage-tagged logging, timing, and
// result metrics.
func (b *Builder) runStage(ctx context.Context, stage string, fn func(context.Context) error) error {
	stageCtx := observability.WithStage(ctx, stage)
	start := time.Now()
	err := fn(stageCtx)
	elapsed := time.Since(start)

	b.rec.ObserveStageDuration(stage, elapsed)
	switch {
	case err == nil:
		b.rec.IncStageResult(stage, metrics.ResultSuccess)
		observability.DebugContext(stageCtx, "stage finished",
			slog.Duration("elapsed", elapsed))
	case stageCtx.Err() != nil:
		b.rec.IncStageResult(stage, metrics.ResultCanceled)
	default:
		b.rec.IncStageResult(stage, metrics.ResultFatal)
		observability.ErrorContext(stageCtx, "stage failed",
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()))
	}
	return err
}

// finish stamps the result, records build-level metrics, and logs the
// summary line. It returns its arguments so callers can tail-call it.
func (b *Builder) finish(ctx context.Context, result *Result, err error) (*Result, error) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	switch {
	case err != nil && ctx.Err() != nil:
		result.Status = StatusCanceled
	case err != nil:
		result.Status = StatusFailed
	case result.Failed > 0:
		result.Status = StatusWarning
	default:
		result.Status = StatusSuccess
	}

	b.rec.ObserveBuildDuration(result.Duration)
	b.rec.IncBuildOutcome(string(result.Status))

	if result.Status == StatusFailed {
		observability.ErrorContext(ctx, "build failed",
			slog.String("category", string(errors.GetCategory(err))),
			slog.String("error", err.Error()))
	}

	observability.InfoContext(ctx, "build finished",
		slog.String("status", string(result.Status)),
		slog.Int("pages", result.Pages),
		slog.Int("written", result.Written),
		slog.Int("failed", result.Failed),
		slog.Bool("incremental", result.Incremental),
		slog.Duration("elapsed", result.Duration),
		slog.String("version", version.Version))
	return result, err
}
