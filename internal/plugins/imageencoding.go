package plugins

import (
	"context"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/images"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

func defaultImageSettings() images.Settings {
	return images.Settings{
		Responsive:     true,
		Widths:         []int{400, 600, 800, 1200, 1600, 2400},
		PictureElement: true,
		LazyLoading:    true,
	}
}

// imageEncodingPlugin runs the image encoding engine over each page. When
// the configured format fails its construction-time probe the plugin logs a
// warning and degrades to a pass-through, so a site without image support
// still builds.
type imageEncodingPlugin struct {
	engine *images.Engine // nil when the format probe failed
}

func newImageEncoding(deps plugin.Deps, cfg config.PluginConfig) (plugin.NotePlugin, error) {
	settings := defaultImageSettings()
	if err := decodeSettings(cfg.Settings, &settings); err != nil {
		return nil, errors.ConfigErrorf("image_encoding settings: %v", err)
	}

	paths := deps.Config.Paths
	cacheDir := settings.CacheDir
	if cacheDir == "" {
		cacheDir = paths.Cache
	}
	roots := images.Roots{
		Source: paths.Source,
		Static: paths.Static,
		Output: paths.Output,
		Cache:  cacheDir,
	}

	engine, err := images.NewEngine(settings, roots, deps.Logger, deps.Metrics)
	if err != nil {
		deps.Logger.Warn("image encoding disabled", "error", err)
		return &imageEncodingPlugin{}, nil
	}
	return &imageEncodingPlugin{engine: engine}, nil
}

func (p *imageEncodingPlugin) Name() string { return "image_encoding" }

func (p *imageEncodingPlugin) Process(ctx context.Context, pg *page.Context) (*page.Context, error) {
	if p.engine == nil {
		return pg, nil
	}
	if err := p.engine.EncodePage(ctx, pg); err != nil {
		return nil, err
	}
	return pg, nil
}
