package feeds

import (
	"encoding/xml"

	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

type sitemapDocument struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// writeSitemap lists every published note. lastmod prefers the git commit
// time over the frontmatter date, as the more honest signal.
func (g *Generator) writeSitemap(path string, notes *page.Accessor) error {
	published := notes.Published()
	urls := make([]sitemapURL, 0, len(published))
	for _, pg := range published {
		u := sitemapURL{Loc: g.AbsoluteURL(pg.URL)}
		switch {
		case pg.Git != nil && !pg.Git.LastModified.IsZero():
			u.LastMod = pg.Git.LastModified.Format("2006-01-02")
		case pg.DateInfo != nil && !pg.DateInfo.Parsed.IsZero():
			u.LastMod = pg.DateInfo.Parsed.Format("2006-01-02")
		}
		urls = append(urls, u)
	}

	doc := sitemapDocument{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	return writeXML(path, doc)
}
