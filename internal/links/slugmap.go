package links

import (
	"log/slog"

	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

// SlugMap maps page identifiers to final URLs. Each page registers three
// keys: its relative source path without extension, its bare filename
// without extension, and its title when present. Filename and title keys can
// collide across pages; last write wins.
type SlugMap struct {
	entries map[string]string
}

// BuildSlugMap registers every page under its lookup keys.
func BuildSlugMap(pages []*page.Context, urls *URLBuilder, logger *slog.Logger) *SlugMap {
	if logger == nil {
		logger = slog.Default()
	}
	m := &SlugMap{entries: make(map[string]string, len(pages)*3)}
	for _, pg := range pages {
		finalURL := urls.URLFor(pg)
		m.entries[pg.PathKey()] = finalURL
		m.entries[pg.Stem()] = finalURL
		if pg.Title != "" {
			m.entries[pg.Title] = finalURL
		}
		logger.Debug("mapped page", "page", pg.RelativePath, "url", finalURL)
	}
	return m
}

// Lookup resolves a key to its final URL.
func (m *SlugMap) Lookup(key string) (string, bool) {
	url, ok := m.entries[key]
	return url, ok
}

// Len returns the number of registered keys.
func (m *SlugMap) Len() int {
	return len(m.entries)
}
