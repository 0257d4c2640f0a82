package feeds

import (
	"encoding/xml"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate,omitempty"`
	Description string `xml:"description,omitempty"`
}

// writeRSS renders the newest published notes, up to the configured limit.
// Notes without a parsed date omit pubDate rather than inventing one.
func (g *Generator) writeRSS(path string, notes *page.Accessor, now time.Time) error {
	published := notes.Published()
	if limit := g.feeds.RSS.Limit; limit > 0 && len(published) > limit {
		published = published[:limit]
	}

	items := make([]rssItem, 0, len(published))
	for _, pg := range published {
		item := rssItem{
			Title:       pg.Title,
			Link:        g.AbsoluteURL(pg.URL),
			GUID:        g.AbsoluteURL(pg.URL),
			Description: pg.Description,
		}
		if pg.DateInfo != nil && !pg.DateInfo.Parsed.IsZero() {
			item.PubDate = pg.DateInfo.Parsed.Format(time.RFC1123Z)
		}
		items = append(items, item)
	}

	doc := rssDocument{
		Version: "2.0",
		Channel: rssChannel{
			Title:         g.site.Title,
			Link:          g.site.BaseURL,
			Description:   g.site.Description,
			Language:      g.site.Language,
			LastBuildDate: now.Format(time.RFC1123Z),
			Items:         items,
		},
	}
	return writeXML(path, doc)
}
