package images

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

// fragmentContext parses page content the way a browser would inside <body>.
func fragmentContext() *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
}

// extractImageRefs collects local <img> sources from rendered markup, in
// document order, deduplicated.
func extractImageRefs(content string) []string {
	nodes, err := html.ParseFragment(strings.NewReader(content), fragmentContext())
	if err != nil {
		return nil
	}

	var refs []string
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			if src := getAttr(n, "src"); src != "" && !isExternalRef(src) && !seen[src] {
				seen[src] = true
				refs = append(refs, src)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return refs
}

func isExternalRef(src string) bool {
	return strings.HasPrefix(src, "http://") ||
		strings.HasPrefix(src, "https://") ||
		strings.HasPrefix(src, "//") ||
		strings.HasPrefix(src, "data:")
}

func getAttr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// rewriteMarkup replaces every processed <img> with its responsive form and
// re-renders the fragment. A parse failure leaves content untouched.
func (e *Engine) rewriteMarkup(content string, processed map[string]page.EncodedImage) (string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(content), fragmentContext())
	if err != nil {
		return content, fmt.Errorf("parse content: %w", err)
	}

	// Collect first; splicing while walking would skip siblings.
	var targets []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			if enc, ok := processed[getAttr(n, "src")]; ok && len(enc.Derivatives) > 0 {
				targets = append(targets, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}

	for _, img := range targets {
		enc := processed[getAttr(img, "src")]
		replacement := e.buildResponsiveNode(enc, getAttr(img, "alt"), getAttr(img, "class"))
		parent := img.Parent
		if parent == nil {
			// Root-level node in the fragment list.
			for i, n := range nodes {
				if n == img {
					nodes[i] = replacement
				}
			}
			continue
		}
		parent.InsertBefore(replacement, img)
		parent.RemoveChild(img)
	}

	var buf strings.Builder
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return content, fmt.Errorf("render content: %w", err)
		}
	}
	return buf.String(), nil
}

// buildResponsiveNode constructs the replacement markup directly: either a
// <picture> with a typed <source> plus fallback <img>, or a bare <img> with
// srcset, per settings.
func (e *Engine) buildResponsiveNode(enc page.EncodedImage, alt, class string) *html.Node {
	srcset := srcsetOf(enc.Derivatives)
	fallback := middleDerivative(enc.Derivatives).URL

	img := &html.Node{Type: html.ElementNode, DataAtom: atom.Img, Data: "img"}
	img.Attr = append(img.Attr, html.Attribute{Key: "src", Val: fallback})
	if !e.settings.PictureElement {
		img.Attr = append(img.Attr, html.Attribute{Key: "srcset", Val: srcset})
	}
	if alt != "" {
		img.Attr = append(img.Attr, html.Attribute{Key: "alt", Val: alt})
	}
	if class != "" {
		img.Attr = append(img.Attr, html.Attribute{Key: "class", Val: class})
	}
	if e.settings.LazyLoading {
		img.Attr = append(img.Attr, html.Attribute{Key: "loading", Val: "lazy"})
	}

	if !e.settings.PictureElement {
		return img
	}

	source := &html.Node{Type: html.ElementNode, DataAtom: atom.Source, Data: "source"}
	source.Attr = append(source.Attr,
		html.Attribute{Key: "srcset", Val: srcset},
		html.Attribute{Key: "type", Val: "image/" + e.settings.Format},
	)

	picture := &html.Node{Type: html.ElementNode, DataAtom: atom.Picture, Data: "picture"}
	picture.AppendChild(source)
	picture.AppendChild(img)
	return picture
}

// srcsetOf renders the width-keyed candidate list, ascending.
func srcsetOf(derivatives []page.Derivative) string {
	parts := make([]string, len(derivatives))
	for i, d := range derivatives {
		parts[i] = fmt.Sprintf("%s %dw", d.URL, d.Width)
	}
	return strings.Join(parts, ", ")
}

// middleDerivative picks the fallback: the middle entry by width, or the
// only entry when one exists.
func middleDerivative(derivatives []page.Derivative) page.Derivative {
	return derivatives[len(derivatives)/2]
}
