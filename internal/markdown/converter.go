// Package markdown renders note bodies to HTML.
//
// Notes are trusted input, so raw HTML passes through unchanged. Code blocks
// are highlighted server-side with chroma; the style name is validated at
// construction so a typo fails the build instead of silently falling back.
package markdown

import (
	"bytes"
	"fmt"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// DefaultHighlightStyle is used when the markdown plugin settings do not name one.
const DefaultHighlightStyle = "monokai"

// Options controls converter construction.
type Options struct {
	// HighlightStyle is a chroma style name. Empty selects DefaultHighlightStyle.
	HighlightStyle string
	// HighlightClasses emits CSS classes instead of inline styles, so themes
	// can restyle code blocks from a stylesheet.
	HighlightClasses bool
}

// Converter turns a markdown body (frontmatter already removed) into an HTML fragment.
type Converter struct {
	md goldmark.Markdown
}

// NewConverter builds a converter with GFM, footnotes, and syntax highlighting.
// An unknown highlight style is a construction error.
func NewConverter(opts Options) (*Converter, error) {
	style := opts.HighlightStyle
	if style == "" {
		style = DefaultHighlightStyle
	}
	if _, ok := styles.Registry[style]; !ok {
		return nil, fmt.Errorf("unknown highlight style %q", style)
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			highlighting.NewHighlighting(
				highlighting.WithStyle(style),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(opts.HighlightClasses),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			// Raw HTML in notes is intentional (embeds, figures, custom markup).
			html.WithUnsafe(),
		),
	)
	return &Converter{md: md}, nil
}

// Convert renders source to an HTML fragment.
func (c *Converter) Convert(source []byte) (string, error) {
	var buf bytes.Buffer
	if err := c.md.Convert(source, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
