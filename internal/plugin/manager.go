package plugin

import (
	"context"
	"io"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/observability"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

// Manager owns the resolved, instantiated note plugin chain and drives it
// over single pages. Construction performs all validation (ordering,
// capabilities, unknown names); execution never re-validates.
type Manager struct {
	plugins []NotePlugin
	logger  *slog.Logger
	rec     metrics.Recorder
}

// NewManager resolves the configured note plugins into execution order and
// instantiates each through its registered factory.
func NewManager(reg *Registry, deps Deps, configs []config.PluginConfig) (*Manager, error) {
	ordered, err := ResolveOrder("note plugins", configs)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	instances := make([]NotePlugin, 0, len(ordered))
	for _, pc := range ordered {
		entry, ok := reg.noteEntry(pc.Name)
		if !ok {
			return nil, errors.ConfigErrorf("no registered note plugin %q", pc.Name)
		}
		if err := checkCapabilities(pc.Name, entry.requires, deps); err != nil {
			return nil, err
		}
		p, err := entry.factory(deps, pc)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryPlugin, errors.SeverityFatal, "initialize note plugin "+pc.Name)
		}
		instances = append(instances, p)
	}

	return &Manager{plugins: instances, logger: logger, rec: rec}, nil
}

// Plugins returns the resolved execution order by name.
func (m *Manager) Plugins() []string {
	names := make([]string, len(m.plugins))
	for i, p := range m.plugins {
		names[i] = p.Name()
	}
	return names
}

// ProcessPage runs every plugin over pg in resolved order. The page returned
// by each plugin feeds the next. The first plugin error aborts this page and
// propagates wrapped with plugin and page identity; the caller decides
// whether the build continues.
func (m *Manager) ProcessPage(ctx context.Context, pg *page.Context) (*page.Context, error) {
	for _, p := range m.plugins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pluginCtx := observability.WithPlugin(ctx, p.Name())
		start := time.Now()
		next, err := p.Process(pluginCtx, pg)
		elapsed := time.Since(start)

		m.rec.ObservePluginDuration(p.Name(), elapsed)
		observability.DebugContext(pluginCtx, "note plugin finished",
			slog.Duration("elapsed", elapsed))

		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryPlugin, errors.SeverityError, "note plugin "+p.Name()).
				WithContext("plugin", p.Name()).
				WithContext("page", pg.RelativePath)
		}
		if next != nil {
			pg = next
		}
	}
	return pg, nil
}

// Close releases resources held by plugins that implement io.Closer. Every
// closer runs; the first error wins.
func (m *Manager) Close() error {
	var first error
	for _, p := range m.plugins {
		c, ok := p.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// BuildRunner owns the resolved build plugin chain, run once per build over
// the full page set after the per-page phase completes.
type BuildRunner struct {
	plugins []BuildPlugin
	logger  *slog.Logger
	rec     metrics.Recorder
}

// NewBuildRunner resolves and instantiates the configured build plugins.
func NewBuildRunner(reg *Registry, deps Deps, configs []config.PluginConfig) (*BuildRunner, error) {
	ordered, err := ResolveOrder("build plugins", configs)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	instances := make([]BuildPlugin, 0, len(ordered))
	for _, pc := range ordered {
		entry, ok := reg.buildEntry(pc.Name)
		if !ok {
			return nil, errors.ConfigErrorf("no registered build plugin %q", pc.Name)
		}
		if err := checkCapabilities(pc.Name, entry.requires, deps); err != nil {
			return nil, err
		}
		p, err := entry.factory(deps, pc)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryPlugin, errors.SeverityFatal, "initialize build plugin "+pc.Name)
		}
		instances = append(instances, p)
	}

	return &BuildRunner{plugins: instances, logger: logger, rec: rec}, nil
}

// Plugins returns the resolved execution order by name.
func (r *BuildRunner) Plugins() []string {
	names := make([]string, len(r.plugins))
	for i, p := range r.plugins {
		names[i] = p.Name()
	}
	return names
}

// Execute runs every build plugin in resolved order over the full page set.
// The first error aborts the remaining plugins.
func (r *BuildRunner) Execute(ctx context.Context, pages []*page.Context) error {
	for _, p := range r.plugins {
		if err := ctx.Err(); err != nil {
			return err
		}

		pluginCtx := observability.WithPlugin(ctx, p.Name())
		start := time.Now()
		err := p.Execute(pluginCtx, pages)
		elapsed := time.Since(start)

		r.rec.ObservePluginDuration(p.Name(), elapsed)
		observability.DebugContext(pluginCtx, "build plugin finished",
			slog.Duration("elapsed", elapsed))

		if err != nil {
			return errors.Wrap(err, errors.CategoryPlugin, errors.SeverityError, "build plugin "+p.Name()).
				WithContext("plugin", p.Name())
		}
	}
	return nil
}

// checkCapabilities verifies every declared capability against what deps can
// supply. An unknown or unsatisfiable capability is a fatal configuration
// error naming the plugin and the capability.
func checkCapabilities(name string, requires []Capability, deps Deps) error {
	for _, c := range requires {
		if !deps.Supports(c) {
			return errors.ConfigErrorf("plugin %q requires capability %q which is not available", name, string(c))
		}
	}
	return nil
}
