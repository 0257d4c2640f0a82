// Package plugin defines the pipeline plugin model: the two plugin kinds,
// the factory registry with explicit capability declarations, dependency
// resolution into a stable execution order, and the managers that drive
// execution.
package plugin

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

// NotePlugin transforms a single page. Process may mutate the page in place
// and return it, or return a replacement; the manager continues with whatever
// is returned. A plugin owns Content plus the sub-record it populates and
// must leave other fields alone.
type NotePlugin interface {
	Name() string
	Process(ctx context.Context, pg *page.Context) (*page.Context, error)
}

// BuildPlugin runs once over the full page set, after every page's note
// pipeline has completed.
type BuildPlugin interface {
	Name() string
	Execute(ctx context.Context, pages []*page.Context) error
}

// Capability names a dependency a plugin factory declares at registration.
// Declaring a capability the manager cannot supply fails at load time.
type Capability string

const (
	// CapSiteConfig grants access to the full site configuration.
	CapSiteConfig Capability = "site_config"
	// CapLogger grants a logger scoped to the plugin.
	CapLogger Capability = "logger"
	// CapMetrics grants the metrics recorder.
	CapMetrics Capability = "metrics"
)

// Deps carries everything the managers can hand to plugin factories.
type Deps struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// Supports reports whether this Deps can satisfy the named capability.
func (d Deps) Supports(c Capability) bool {
	switch c {
	case CapSiteConfig:
		return d.Config != nil
	case CapLogger:
		return d.Logger != nil
	case CapMetrics:
		return d.Metrics != nil
	default:
		return false
	}
}

// NoteFactory constructs a note plugin from its resolved dependencies and
// its configuration entry (settings included).
type NoteFactory func(deps Deps, cfg config.PluginConfig) (NotePlugin, error)

// BuildFactory constructs a build plugin.
type BuildFactory func(deps Deps, cfg config.PluginConfig) (BuildPlugin, error)
