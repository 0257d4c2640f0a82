// Package server runs the development server: it builds the site, serves
// the output directory, watches the workspace for changes, rebuilds, and
// pushes reload events to connected browsers.
package server

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitebuilder/internal/builder"
	"git.home.luguber.info/inful/sitebuilder/internal/buildlog"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

// Server ties the builder, watcher, reload hub, and HTTP endpoints together
// for the serve command.
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	rec        metrics.Recorder
	promReg    *prom.Registry

	// builder is owned by the build loop once Run starts; the initial build
	// and config-reload swaps happen on that same goroutine.
	builder *builder.Builder
	hub     *ReloadHub
	history *buildlog.Store

	changes chan ChangeSet
	httpSrv *http.Server
}

// New wires a dev server for the given configuration. configPath is watched
// for edits; promReg may be nil when metrics are disabled.
func New(cfg *config.Config, configPath string, logger *slog.Logger, rec metrics.Recorder, promReg *prom.Registry) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	b, err := builder.New(cfg, logger, rec)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		rec:        rec,
		promReg:    promReg,
		builder:    b,
		hub:        NewReloadHub(logger),
		changes:    make(chan ChangeSet, 1),
	}

	if cfg.Dev.BuildLog != "" {
		history, err := buildlog.Open(cfg.Dev.BuildLog)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		s.history = history
	}

	return s, nil
}

// Run builds the site, then serves and watches until the context ends.
// A failing initial build does not stop the server; the error is logged and
// the next successful rebuild heals the output.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	s.applyChanges(ctx, ChangeSet{Full: true})

	watcher, err := NewWatcher(s.cfg, s.configPath, s.changes, s.logger)
	if err != nil {
		return err
	}
	defer watcher.Close()

	addr := s.cfg.Dev.Address()
	// Bind before starting anything so an occupied port fails fast.
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, errors.CategoryNetwork, errors.SeverityFatal, "bind "+addr)
	}

	s.httpSrv = &http.Server{
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	var sched gocron.Scheduler
	if interval := s.cfg.Dev.RebuildIntervalDuration(); interval > 0 {
		sched, err = gocron.NewScheduler()
		if err != nil {
			_ = ln.Close()
			return errors.Wrap(err, errors.CategoryInternal, errors.SeverityFatal, "create scheduler")
		}
		if _, err := sched.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(s.requestFullRebuild),
			gocron.WithName("scheduled-rebuild"),
		); err != nil {
			_ = ln.Close()
			return errors.Wrap(err, errors.CategoryInternal, errors.SeverityFatal, "schedule periodic rebuild")
		}
		sched.Start()
		s.logger.Info("periodic rebuild scheduled", slog.Duration("interval", interval))
	}

	s.logger.Info("dev server listening",
		slog.String("addr", "http://"+addr),
		slog.String("output", s.cfg.Paths.Output))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(gctx)
	})
	g.Go(func() error {
		s.buildLoop(gctx)
		return nil
	})
	g.Go(func() error {
		if err := s.httpSrv.Serve(ln); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, errors.CategoryNetwork, errors.SeverityFatal, "serve "+addr)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP shutdown incomplete", slog.Any("error", err))
		}
		s.hub.Shutdown()
		if sched != nil {
			if err := sched.Shutdown(); err != nil {
				s.logger.Warn("scheduler shutdown failed", slog.Any("error", err))
			}
		}
		return nil
	})

	err = g.Wait()
	s.logger.Info("dev server stopped")
	return err
}

func (s *Server) close() {
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Warn("close build history failed", slog.Any("error", err))
		}
	}
	if err := s.builder.Close(); err != nil {
		s.logger.Warn("close builder failed", slog.Any("error", err))
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// SSE needs the raw ResponseWriter for flushing, so the hub and its
	// script bypass the middleware chain.
	mux.Handle("/__reload", s.hub)
	mux.HandleFunc("/__reload.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if _, err := w.Write([]byte(ReloadScript)); err != nil {
			s.logger.Debug("write reload script failed", slog.Any("error", err))
		}
	})

	if s.cfg.Dev.Metrics && s.promReg != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.promReg))
	}
	if s.history != nil {
		mux.Handle("/builds", chain(s.logger, http.HandlerFunc(s.handleBuilds)))
	}

	docs := injectReloadScript(http.FileServer(http.Dir(s.cfg.Paths.Output)))
	mux.Handle("/", chain(s.logger, docs))
	return mux
}

// handleBuilds serves the recent build history as JSON.
func (s *Server) handleBuilds(w http.ResponseWriter, r *http.Request) {
	records, err := s.history.Recent(r.Context(), 50)
	if err != nil {
		s.logger.Error("build history query failed", slog.Any("error", err))
		http.Error(w, "build history unavailable", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []buildlog.Record{}
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		s.logger.Debug("write build history failed", slog.Any("error", err))
	}
}

// buildLoop applies queued change sets one at a time. The cap-1 channel
// plus the watcher's poll-retry gives the follow-up semantics: while a
// build runs, at most one set waits, and everything else merges into it.
func (s *Server) buildLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case set := <-s.changes:
			s.applyChanges(ctx, set)
		}
	}
}

func (s *Server) applyChanges(ctx context.Context, set ChangeSet) {
	if set.Config {
		s.reloadConfig(ctx)
		return
	}

	var (
		result *builder.Result
		err    error
	)
	switch {
	case set.Full:
		result, err = s.builder.Build(ctx)
	case len(set.Sources) > 0:
		result, err = s.builder.RebuildFiles(ctx, set.Sources)
	}

	if set.Static {
		if serr := s.builder.SyncStatic(ctx); serr != nil {
			s.logger.Warn("static sync failed", slog.Any("error", serr))
		}
	}

	if result == nil {
		if set.Static {
			// Static-only change: no new build, but browsers still reload.
			s.hub.Broadcast(uuid.NewString())
		}
		return
	}
	if result.Status == builder.StatusCanceled {
		return
	}

	if err != nil {
		s.logger.Error("rebuild failed", slog.Any("error", err))
	}
	s.recordBuild(result, err)
	if err == nil {
		s.hub.Broadcast(result.BuildID)
	}
}

// reloadConfig re-reads the config file and replaces the builder so plugin,
// rule, and site changes take effect. Path and server address changes still
// need a restart; the watcher and listener keep their original targets.
func (s *Server) reloadConfig(ctx context.Context) {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		s.logger.Warn("config reload failed, keeping previous configuration",
			slog.Any("error", err))
		return
	}

	b, err := builder.New(cfg, s.logger, s.rec)
	if err != nil {
		s.logger.Warn("config reload failed, keeping previous configuration",
			slog.Any("error", err))
		return
	}

	if err := s.builder.Close(); err != nil {
		s.logger.Warn("close previous builder failed", slog.Any("error", err))
	}
	s.cfg = cfg
	s.builder = b
	s.logger.Info("configuration reloaded", slog.String("path", s.configPath))

	s.applyChanges(ctx, ChangeSet{Full: true})
}

func (s *Server) recordBuild(result *builder.Result, buildErr error) {
	if s.history == nil {
		return
	}
	rec := buildlog.Record{
		BuildID:     result.BuildID,
		StartedAt:   result.StartTime,
		DurationMS:  result.Duration.Milliseconds(),
		Pages:       result.Pages,
		Written:     result.Written,
		Failed:      result.Failed,
		Incremental: result.Incremental,
		Success:     result.Status == builder.StatusSuccess || result.Status == builder.StatusWarning,
	}
	if buildErr != nil {
		rec.Error = buildErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.Append(ctx, rec); err != nil {
		s.logger.Warn("record build failed", slog.Any("error", err))
	}
}

// requestFullRebuild queues a full rebuild unless one is already waiting.
func (s *Server) requestFullRebuild() {
	select {
	case s.changes <- ChangeSet{Full: true}:
		s.logger.Debug("scheduled rebuild queued")
	default:
	}
}
