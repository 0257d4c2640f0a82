package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

// frontmatterPlugin splits YAML frontmatter from the raw document, decodes it
// into the typed sub-record, and applies its fields to the page. Fields
// already set on the page win; status always comes from frontmatter. It runs
// first in the default chain so every later plugin sees the bare body.
type frontmatterPlugin struct {
	logger *slog.Logger
}

func newFrontmatter(deps plugin.Deps, _ config.PluginConfig) (plugin.NotePlugin, error) {
	return &frontmatterPlugin{logger: deps.Logger}, nil
}

func (p *frontmatterPlugin) Name() string { return "frontmatter" }

func (p *frontmatterPlugin) Process(_ context.Context, pg *page.Context) (*page.Context, error) {
	fm, body, had, _, err := frontmatter.Split(pg.RawContent)
	if err != nil {
		return nil, fmt.Errorf("split frontmatter: %w", err)
	}
	pg.Content = string(body)

	if had {
		var data page.FrontmatterData
		if err := frontmatter.Decode(fm, &data); err != nil {
			return nil, fmt.Errorf("decode frontmatter: %w", err)
		}
		fields, err := frontmatter.ParseMap(fm)
		if err != nil {
			return nil, fmt.Errorf("parse frontmatter fields: %w", err)
		}
		data.Fields = fields
		pg.Frontmatter = &data
		p.apply(pg, &data)
	}

	// A page without an explicit title takes it from a leading heading.
	if pg.Title == "" {
		if title, rest, ok := titleFromHeading(pg.Content); ok {
			pg.Title = title
			pg.Content = rest
		}
	}

	pg.AssignSlug()
	return pg, nil
}

func (p *frontmatterPlugin) apply(pg *page.Context, fm *page.FrontmatterData) {
	if pg.Title == "" {
		pg.Title = fm.Title
	}
	if pg.Description == "" {
		pg.Description = fm.Description
	}
	if pg.Author == "" {
		pg.Author = fm.Author
	}
	if len(pg.Tags) == 0 {
		pg.Tags = []string(fm.Tags)
	}
	if pg.Date == "" {
		pg.Date = fm.Date
	}
	if len(pg.FeaturedPhotos) == 0 {
		pg.FeaturedPhotos = fm.FeaturedPhotos
	}
	if pg.Layout == "" {
		pg.Layout = fm.Layout
	}
	if pg.Template == page.DefaultTemplate && fm.Template != "" && fm.Template != page.DefaultTemplate {
		pg.Template = fm.Template
	}

	status, ok := page.ParseStatus(fm.Status)
	if !ok {
		p.logger.Warn("unrecognized status, treating page as scratch",
			"status", fm.Status, "page", pg.RelativePath)
	}
	pg.Status = status
}

// titleFromHeading extracts the title from a leading markdown heading and
// returns the content with that line removed.
func titleFromHeading(content string) (title, rest string, ok bool) {
	line, remainder, hasMore := strings.Cut(content, "\n")
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	title = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
	if title == "" {
		return "", "", false
	}
	if !hasMore {
		return title, "", true
	}
	return title, remainder, true
}
