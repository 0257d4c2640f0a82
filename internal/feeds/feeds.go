// Package feeds writes the RSS 2.0 feed and sitemap.xml for a finished
// build. Both documents cover published notes only.
package feeds

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

// Generator writes the feed documents enabled in configuration.
type Generator struct {
	site   config.SiteConfig
	feeds  config.FeedsConfig
	logger *slog.Logger
}

// NewGenerator builds a Generator for one site.
func NewGenerator(site config.SiteConfig, feeds config.FeedsConfig, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{site: site, feeds: feeds, logger: logger}
}

// WriteAll writes every enabled feed under outputRoot. Disabled feeds are
// skipped silently.
func (g *Generator) WriteAll(outputRoot string, notes *page.Accessor, now time.Time) error {
	if g.feeds.RSS.Enabled {
		path := filepath.Join(outputRoot, g.feeds.RSS.Path)
		if err := g.writeRSS(path, notes, now); err != nil {
			return fmt.Errorf("write rss feed: %w", err)
		}
		g.logger.Info("rss feed written", "path", path)
	}
	if g.feeds.Sitemap.Enabled {
		path := filepath.Join(outputRoot, g.feeds.Sitemap.Path)
		if err := g.writeSitemap(path, notes); err != nil {
			return fmt.Errorf("write sitemap: %w", err)
		}
		g.logger.Info("sitemap written", "path", path)
	}
	return nil
}

// AbsoluteURL joins the site base URL with a page's site-relative URL.
func (g *Generator) AbsoluteURL(pageURL string) string {
	base := strings.TrimRight(g.site.BaseURL, "/")
	if !strings.HasPrefix(pageURL, "/") {
		pageURL = "/" + pageURL
	}
	return base + pageURL
}

func writeXML(path string, doc any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append([]byte(xml.Header), body...), 0o644)
}
