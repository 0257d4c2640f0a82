package plugins

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

type markdownSettings struct {
	HighlightStyle   string `yaml:"highlight_style"`
	HighlightClasses bool   `yaml:"highlight_classes"`
}

// markdownPlugin renders the page body to HTML. Everything after it in the
// chain operates on markup, everything before it on markdown.
type markdownPlugin struct {
	converter *markdown.Converter
}

func newMarkdown(_ plugin.Deps, cfg config.PluginConfig) (plugin.NotePlugin, error) {
	var settings markdownSettings
	if err := decodeSettings(cfg.Settings, &settings); err != nil {
		return nil, fmt.Errorf("markdown settings: %w", err)
	}
	conv, err := markdown.NewConverter(markdown.Options{
		HighlightStyle:   settings.HighlightStyle,
		HighlightClasses: settings.HighlightClasses,
	})
	if err != nil {
		return nil, err
	}
	return &markdownPlugin{converter: conv}, nil
}

func (p *markdownPlugin) Name() string { return "markdown" }

func (p *markdownPlugin) Process(_ context.Context, pg *page.Context) (*page.Context, error) {
	rendered, err := p.converter.Convert([]byte(pg.Content))
	if err != nil {
		return nil, err
	}
	pg.Content = rendered
	return pg, nil
}
