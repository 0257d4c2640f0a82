package snapshot

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var anchorPattern = regexp.MustCompile(`<a\s+([^>]*?)href="([^"]*)"([^>]*)>`)

// IsExternalURL reports whether an anchor target points off-site.
func IsExternalURL(url string) bool {
	return strings.HasPrefix(url, "http://") ||
		strings.HasPrefix(url, "https://") ||
		strings.HasPrefix(url, "www.")
}

// ExtractExternalURLs collects external anchor targets from rendered markup,
// deduplicated in document order.
func ExtractExternalURLs(content string) []string {
	body := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	nodes, err := html.ParseFragment(strings.NewReader(content), body)
	if err != nil {
		return nil
	}

	var urls []string
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for _, attr := range n.Attr {
				if attr.Key == "href" && IsExternalURL(attr.Val) && !seen[attr.Val] {
					seen[attr.Val] = true
					urls = append(urls, attr.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return urls
}

// AnnotateLinks stamps snapshot data attributes onto every anchor whose
// target has metadata: data-snapshot-id always, date and original URL only
// for advertised snapshots. Anchors without metadata pass through untouched.
func (a *Archiver) AnnotateLinks(content string) string {
	return anchorPattern.ReplaceAllStringFunc(content, func(tag string) string {
		m := anchorPattern.FindStringSubmatch(tag)
		if m == nil {
			return tag
		}
		href := m[2]
		if !IsExternalURL(href) || strings.Contains(tag, "data-snapshot-id=") {
			return tag
		}
		meta := a.Lookup(href)
		if meta == nil {
			return tag
		}

		var b strings.Builder
		b.WriteString(strings.TrimSuffix(tag, ">"))
		fmt.Fprintf(&b, " data-snapshot-id=%q", URLID(href))

		attrs := meta.LinkAttributes()
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%q", k, attrs[k])
		}
		b.WriteString(">")
		return b.String()
	})
}
