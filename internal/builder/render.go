package builder

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/observability"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/templates"
	"git.home.luguber.info/inful/sitebuilder/internal/version"
)

// templateFor selects the template: the first configured rule whose
// predicates match and that names a file wins, otherwise whatever the page
// carries from its frontmatter (or the default).
func (b *Builder) templateFor(pg *page.Context) string {
	for _, rule := range b.cfg.Templates {
		if rule.File == "" {
			continue
		}
		if b.matcher.Matches(pg, rule.Predicates) {
			return rule.File
		}
	}
	return pg.Template
}

// outputPathFor maps a site URL to a path relative to the output root. A
// directory-style URL becomes its index.html; anything not already naming an
// .html file gets the extension appended.
func outputPathFor(url string) string {
	rel := strings.TrimLeft(url, "/")
	switch {
	case rel == "" || strings.HasSuffix(rel, "/"):
		rel += "index.html"
	case !strings.HasSuffix(rel, ".html"):
		rel += ".html"
	}
	return rel
}

// renderPages assigns final URLs and writes one document per renderable page
// in toRender. notes spans the full page set so templates can list across
// pages even on incremental rebuilds. Scratch pages get a URL but no file.
func (b *Builder) renderPages(ctx context.Context, engine *templates.Engine, result *Result, toRender []*page.Context, notes *page.Accessor) error {
	site := templates.Site{
		Title:       b.cfg.Site.Title,
		Description: b.cfg.Site.Description,
		Author:      b.cfg.Site.Author,
		BaseURL:     b.cfg.Site.BaseURL,
		Language:    b.cfg.Site.Language,
	}
	build := templates.Build{ID: result.BuildID, Time: result.StartTime, Version: version.Version}

	for _, pg := range toRender {
		if err := ctx.Err(); err != nil {
			return err
		}

		pg.URL = b.urls.URLFor(pg)
		if !pg.Status.Renderable() {
			result.Scratch++
			b.rec.IncPageResult("skipped")
			continue
		}
		pg.Template = b.templateFor(pg)

		pageCtx := observability.WithPage(ctx, pg.RelativePath)
		if err := b.writeDocument(engine, site, build, pg, notes); err != nil {
			b.rec.IncPageResult("failed")
			if b.cfg.Build.FailFast {
				return err
			}
			observability.WarnContext(pageCtx, "render failed, continuing",
				slog.String("error", err.Error()))
			result.Failed++
			continue
		}
		result.Written++
		b.rec.IncPageResult("built")
		observability.DebugContext(pageCtx, "document written",
			slog.String("url", pg.URL),
			slog.String("path", pg.OutputPath))
	}
	return nil
}

// writeDocument renders one page and writes it under the output root,
// recording the final path on the page.
func (b *Builder) writeDocument(engine *templates.Engine, site templates.Site, build templates.Build, pg *page.Context, notes *page.Accessor) error {
	html, err := engine.Render(templates.Data{Site: site, Page: pg, Notes: notes, Build: build})
	if err != nil {
		return err
	}

	outPath := filepath.Join(b.cfg.Paths.Output, filepath.FromSlash(outputPathFor(pg.URL)))
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(outPath, []byte(html), 0o644); err != nil {
		return err
	}
	pg.OutputPath = outPath
	return nil
}
