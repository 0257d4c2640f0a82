package plugins

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/links"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

// linkResolutionPlugin rewrites intra-site links in every page to final
// URLs. It must run as a build plugin: a page cannot know another page's URL
// until every page has a slug.
type linkResolutionPlugin struct {
	urls   *links.URLBuilder
	logger *slog.Logger
}

func newLinkResolution(deps plugin.Deps, _ config.PluginConfig) (plugin.BuildPlugin, error) {
	matcher := plugin.NewMatcher(deps.Logger)
	return &linkResolutionPlugin{
		urls:   links.NewURLBuilder(deps.Config.Templates, matcher),
		logger: deps.Logger,
	}, nil
}

func (p *linkResolutionPlugin) Name() string { return "link_resolution" }

func (p *linkResolutionPlugin) Execute(ctx context.Context, pages []*page.Context) error {
	slugs := links.BuildSlugMap(pages, p.urls, p.logger)
	p.logger.Info("built link resolution map", "entries", slugs.Len())

	rewriter := links.NewRewriter(slugs, p.logger)
	for _, pg := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		rewriter.RewritePage(pg)
	}
	return nil
}
