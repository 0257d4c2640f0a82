package links

import (
	"log/slog"
	"path"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

// hrefPattern matches <a> opening tags with a double-quoted href.
var hrefPattern = regexp.MustCompile(`<a\s+([^>]*?)href="([^"]*)"([^>]*)>`)

// Rewriter rewrites intra-site link targets in page content against a
// fully-built SlugMap. Unresolvable targets pass through unchanged with a
// debug log; a broken link never fails a build.
type Rewriter struct {
	slugs  *SlugMap
	logger *slog.Logger
}

// NewRewriter builds a Rewriter over a complete slug map.
func NewRewriter(slugs *SlugMap, logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewriter{slugs: slugs, logger: logger}
}

// RewritePage rewrites every markdown link and HTML anchor in pg.Content.
func (r *Rewriter) RewritePage(pg *page.Context) {
	pg.Content = r.rewriteMarkdownLinks(pg.Content, pg)
	pg.Content = r.rewriteHTMLAnchors(pg.Content, pg)
}

// rewriteMarkdownLinks scans for [text](target) character by character
// instead of with a regexp, which avoids backtracking blowups on pathological
// content.
func (r *Rewriter) rewriteMarkdownLinks(content string, pg *page.Context) string {
	var result strings.Builder
	result.Grow(len(content))

	i := 0
	for i < len(content) {
		if content[i] == '[' && i+1 < len(content) {
			if newI, processed := r.tryProcessLink(content, i, pg, &result); processed {
				i = newI
				continue
			}
		}
		result.WriteByte(content[i])
		i++
	}

	return result.String()
}

// tryProcessLink attempts to process a markdown link starting at the '[' at
// position i. Returns the new scan position and whether anything was
// consumed.
func (r *Rewriter) tryProcessLink(content string, i int, pg *page.Context, result *strings.Builder) (int, bool) {
	// Image references are the image pipeline's business, not link targets.
	isImage := i > 0 && content[i-1] == '!'

	closeBracket := findClosingBracket(content, i+1)
	if closeBracket == -1 {
		return 0, false
	}

	if closeBracket+1 >= len(content) || content[closeBracket+1] != '(' {
		result.WriteString(content[i : closeBracket+1])
		return closeBracket + 1, true
	}

	closeParen := findClosingParen(content, closeBracket+2)
	if closeParen == -1 {
		result.WriteString(content[i : closeBracket+2])
		return closeBracket + 2, true
	}

	text := content[i+1 : closeBracket]
	target := content[closeBracket+2 : closeParen]

	if isImage {
		result.WriteString(content[i : closeParen+1])
		return closeParen + 1, true
	}

	resolved := r.Resolve(target, pg)
	result.WriteByte('[')
	result.WriteString(text)
	result.WriteString("](")
	result.WriteString(resolved)
	result.WriteByte(')')
	return closeParen + 1, true
}

// findClosingBracket finds the next ] allowing at most a single newline in
// the link text (a blank line means we are no longer inside a link).
func findClosingBracket(content string, start int) int {
	for i := start; i < len(content); i++ {
		if content[i] == ']' {
			return i
		}
		if content[i] == '\n' {
			if i+1 < len(content) && content[i+1] == '\n' {
				return -1
			}
		}
	}
	return -1
}

// findClosingParen finds the next ). Link targets never contain spaces or
// newlines.
func findClosingParen(content string, start int) int {
	for i := start; i < len(content); i++ {
		switch content[i] {
		case ')':
			return i
		case '\n', ' ':
			return -1
		}
	}
	return -1
}

// rewriteHTMLAnchors rewrites href attributes of <a> tags.
func (r *Rewriter) rewriteHTMLAnchors(content string, pg *page.Context) string {
	return hrefPattern.ReplaceAllStringFunc(content, func(match string) string {
		sub := hrefPattern.FindStringSubmatch(match)
		if len(sub) < 4 {
			return match
		}
		resolved := r.Resolve(sub[2], pg)
		if resolved == sub[2] {
			return match
		}
		return "<a " + sub[1] + `href="` + resolved + `"` + sub[3] + ">"
	})
}

// Resolve maps one link target to its final URL. External targets and
// in-page anchors pass through. One trailing .md is stripped before lookup;
// relative targets are retried against the page's own directory and then by
// bare filename. An unresolvable target is returned unchanged.
func (r *Rewriter) Resolve(target string, pg *page.Context) string {
	trimmed := strings.TrimSpace(target)
	if trimmed == "" || isExternal(trimmed) || strings.HasPrefix(trimmed, "#") {
		return target
	}

	cleaned := strings.TrimSuffix(trimmed, ".md")

	if url, ok := r.slugs.Lookup(cleaned); ok {
		return url
	}

	if strings.HasPrefix(cleaned, "./") || strings.HasPrefix(cleaned, "../") {
		pageDir := path.Dir(pg.PathKey())
		normalized := path.Join(pageDir, cleaned)
		if url, ok := r.slugs.Lookup(normalized); ok {
			return url
		}
		if url, ok := r.slugs.Lookup(path.Base(normalized)); ok {
			return url
		}
	}

	r.logger.Debug("unresolved link", "target", target, "page", pg.RelativePath)
	return target
}

func isExternal(target string) bool {
	return strings.HasPrefix(target, "http://") ||
		strings.HasPrefix(target, "https://") ||
		strings.HasPrefix(target, "mailto:") ||
		strings.HasPrefix(target, "ftp:") ||
		strings.HasPrefix(target, "//")
}
