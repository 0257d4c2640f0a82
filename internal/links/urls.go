// Package links builds the cross-page slug map and rewrites intra-site links
// to final URLs. It runs as the link_resolution build plugin, strictly after
// every page's note pipeline and strictly before template rendering.
package links

import (
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

// URLBuilder derives a page's final URL from the configured template rules.
// The first rule (in configured order) whose predicates match supplies its
// url_pattern; no matching rule means the default pattern /{slug}/.
type URLBuilder struct {
	rules   []config.TemplateRule
	matcher *plugin.Matcher
}

// NewURLBuilder builds a URLBuilder over the configured rules.
func NewURLBuilder(rules []config.TemplateRule, matcher *plugin.Matcher) *URLBuilder {
	return &URLBuilder{rules: rules, matcher: matcher}
}

// URLFor returns the final URL for pg.
func (b *URLBuilder) URLFor(pg *page.Context) string {
	slug := pg.Slug
	if slug == "" {
		slug = "untitled"
	}
	for _, rule := range b.rules {
		if !b.matcher.Matches(pg, rule.Predicates) {
			continue
		}
		if strings.Contains(rule.URLPattern, "{slug}") {
			return strings.ReplaceAll(rule.URLPattern, "{slug}", slug)
		}
	}
	return "/" + slug + "/"
}
