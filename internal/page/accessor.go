package page

import (
	"sort"
	"time"
)

var defaultSortDate = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// Accessor exposes sorted views over the build's pages to templates and
// feeds. Sorting is newest first, title ascending among equal dates; undated
// notes carry the 1900-01-01 default.
type Accessor struct {
	pages []*Context
}

// NewAccessor builds an accessor over the given contexts.
func NewAccessor(pages []*Context) *Accessor {
	return &Accessor{pages: pages}
}

// All returns every page regardless of status, sorted.
func (a *Accessor) All() []*Context {
	return sortPages(append([]*Context(nil), a.pages...))
}

// Published returns pages with publish status, sorted.
func (a *Accessor) Published() []*Context {
	return a.withStatus(StatusPublish)
}

// Drafts returns pages with draft status, sorted.
func (a *Accessor) Drafts() []*Context {
	return a.withStatus(StatusDraft)
}

func (a *Accessor) withStatus(s Status) []*Context {
	out := make([]*Context, 0, len(a.pages))
	for _, p := range a.pages {
		if p.Status == s {
			out = append(out, p)
		}
	}
	return sortPages(out)
}

// WithTag returns published pages carrying the tag, sorted.
func (a *Accessor) WithTag(tag string) []*Context {
	out := make([]*Context, 0, len(a.pages))
	for _, p := range a.pages {
		if p.Status == StatusPublish && p.HasTag(tag) {
			out = append(out, p)
		}
	}
	return sortPages(out)
}

// Recent returns up to n published pages, newest first.
func (a *Accessor) Recent(n int) []*Context {
	pub := a.Published()
	if n < len(pub) {
		pub = pub[:n]
	}
	return pub
}

// Tags returns every tag seen on published pages, sorted, deduplicated.
func (a *Accessor) Tags() []string {
	seen := map[string]bool{}
	for _, p := range a.pages {
		if p.Status != StatusPublish {
			continue
		}
		for _, t := range p.Tags {
			seen[t] = true
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func sortPages(pages []*Context) []*Context {
	sort.SliceStable(pages, func(i, j int) bool {
		di, dj := pages[i].SortDate(), pages[j].SortDate()
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return pages[i].Title < pages[j].Title
	})
	return pages
}
