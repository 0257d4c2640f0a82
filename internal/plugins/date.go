package plugins

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

// datePlugin parses the page's raw date string into the DateData sub-record.
// An unparseable date logs an error and leaves DateInfo unset; it never fails
// the page.
type datePlugin struct {
	logger *slog.Logger
}

func newDate(deps plugin.Deps, _ config.PluginConfig) (plugin.NotePlugin, error) {
	return &datePlugin{logger: deps.Logger}, nil
}

func (p *datePlugin) Name() string { return "date" }

func (p *datePlugin) Process(_ context.Context, pg *page.Context) (*page.Context, error) {
	if pg.Date == "" {
		return pg, nil
	}
	data, ok := page.ParseDate(pg.Date)
	if !ok {
		p.logger.Error("unable to parse date",
			"date", pg.Date, "page", pg.RelativePath)
		return pg, nil
	}
	pg.DateInfo = &data
	return pg, nil
}
