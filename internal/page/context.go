// Package page defines the per-source-file context threaded through the
// plugin pipeline, plus the typed sub-records individual plugins populate.
package page

import (
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/slug"
)

// Context describes one source file as it moves through the pipeline. It is
// created once per file, mutated by each plugin in sequence, and read by the
// builder and templates. A context is never shared across concurrently
// processed pages, so it carries no locking.
type Context struct {
	SourcePath   string
	RelativePath string
	URL          string // final site URL, set by the builder before rendering
	OutputPath   string

	RawContent []byte // immutable original
	Content    string // mutable working text; raw body in, final markup out

	Title       string
	Description string
	Author      string
	Slug        string
	Template    string
	Layout      string
	Date        string // raw string until the date plugin parses it
	Status      Status
	Tags        []string

	FeaturedPhotos []FeaturedPhoto

	Frontmatter *FrontmatterData
	DateInfo    *DateData
	Images      *ImageResults
	Git         *GitData
}

// NewContext creates the context for one source file. Content starts as the
// raw text; the frontmatter plugin replaces it with the body.
func NewContext(sourcePath, relativePath string, raw []byte) *Context {
	return &Context{
		SourcePath:   sourcePath,
		RelativePath: filepath.ToSlash(relativePath),
		RawContent:   raw,
		Content:      string(raw),
		Status:       StatusScratch,
		Template:     DefaultTemplate,
	}
}

// AssignSlug computes the slug exactly once, with precedence
// frontmatter-provided > from title > from filename. Calls after the slug is
// set are no-ops.
func (c *Context) AssignSlug() {
	if c.Slug != "" {
		return
	}
	if c.Frontmatter != nil && c.Frontmatter.Slug != "" {
		c.Slug = slug.Slugify(c.Frontmatter.Slug)
		if c.Slug != "" {
			return
		}
	}
	if c.Title != "" {
		c.Slug = slug.Slugify(c.Title)
		if c.Slug != "" {
			return
		}
	}
	c.Slug = slug.Slugify(c.Stem())
}

// Stem returns the bare filename without extension.
func (c *Context) Stem() string {
	base := filepath.Base(c.RelativePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PathKey returns the relative path without extension, slash-normalized.
// It is the primary key pages register in the link-resolution map.
func (c *Context) PathKey() string {
	rel := filepath.ToSlash(c.RelativePath)
	return strings.TrimSuffix(rel, filepath.Ext(rel))
}

// HasTag reports exact, case-sensitive tag membership.
func (c *Context) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SortDate returns the parsed date, or the 1900-01-01 default that sorts
// undated notes last.
func (c *Context) SortDate() time.Time {
	if c.DateInfo != nil && !c.DateInfo.Parsed.IsZero() {
		return c.DateInfo.Parsed
	}
	return defaultSortDate
}
