package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

type screenshotSettings struct {
	BackgroundImage string `yaml:"background_image"`
	WrapperClasses  string `yaml:"wrapper_classes"`
	InnerClasses    string `yaml:"inner_classes"`
	ImageClasses    string `yaml:"image_classes"`
}

func defaultScreenshotSettings() screenshotSettings {
	return screenshotSettings{
		BackgroundImage: "/desktops/sonoma.jpg",
		WrapperClasses:  "relative px-6 py-4 bg-cover bg-center screenshot",
		InnerClasses:    "flex justify-center items-center",
		ImageClasses:    "max-w-full h-auto rounded-sm",
	}
}

// screenshotPlugin gives screenshots a synthetic desktop backdrop: every
// <img> whose alt text contains "screenshot" is wrapped in a styled wrapper
// div (background image) with a centering inner div. Existing image classes
// are preserved. Runs after the markdown plugin, on markup.
type screenshotPlugin struct {
	settings screenshotSettings
	logger   *slog.Logger
}

func newScreenshot(deps plugin.Deps, cfg config.PluginConfig) (plugin.NotePlugin, error) {
	settings := defaultScreenshotSettings()
	if err := decodeSettings(cfg.Settings, &settings); err != nil {
		return nil, fmt.Errorf("screenshot settings: %w", err)
	}
	return &screenshotPlugin{settings: settings, logger: deps.Logger}, nil
}

func (p *screenshotPlugin) Name() string { return "screenshot" }

func (p *screenshotPlugin) Process(_ context.Context, pg *page.Context) (*page.Context, error) {
	rewritten, err := p.wrapScreenshots(pg.Content)
	if err != nil {
		p.logger.Warn("screenshot markup rewrite failed, keeping content",
			"page", pg.RelativePath, "error", err)
		return pg, nil
	}
	pg.Content = rewritten
	return pg, nil
}

func (p *screenshotPlugin) wrapScreenshots(content string) (string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(content), screenshotFragmentContext())
	if err != nil {
		return "", fmt.Errorf("parse content: %w", err)
	}

	// Collect first; wrapping while walking would revisit moved nodes.
	var targets []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			if alt := nodeAttr(n, "alt"); strings.Contains(strings.ToLower(alt), "screenshot") {
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
	if len(targets) == 0 {
		return content, nil
	}

	for _, img := range targets {
		setNodeAttr(img, "class", joinClasses(nodeAttr(img, "class"), p.settings.ImageClasses))
		wrapper, inner := p.newBackdrop()

		if parent := img.Parent; parent != nil {
			parent.InsertBefore(wrapper, img)
			parent.RemoveChild(img)
			inner.AppendChild(img)
			continue
		}
		// Root-level node in the fragment list.
		inner.AppendChild(img)
		for i, n := range nodes {
			if n == img {
				nodes[i] = wrapper
			}
		}
	}

	var buf strings.Builder
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("render content: %w", err)
		}
	}
	return buf.String(), nil
}

// newBackdrop builds the wrapper > inner div pair a screenshot is spliced
// into.
func (p *screenshotPlugin) newBackdrop() (wrapper, inner *html.Node) {
	inner = &html.Node{Type: html.ElementNode, DataAtom: atom.Div, Data: "div"}
	inner.Attr = append(inner.Attr, html.Attribute{Key: "class", Val: p.settings.InnerClasses})

	wrapper = &html.Node{Type: html.ElementNode, DataAtom: atom.Div, Data: "div"}
	wrapper.Attr = append(wrapper.Attr,
		html.Attribute{Key: "class", Val: p.settings.WrapperClasses},
		html.Attribute{Key: "style", Val: fmt.Sprintf("background-image: url('%s')", p.settings.BackgroundImage)},
	)
	wrapper.AppendChild(inner)
	return wrapper, inner
}

func screenshotFragmentContext() *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
}

func nodeAttr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func setNodeAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func joinClasses(existing, added string) string {
	if existing == "" {
		return added
	}
	if added == "" {
		return existing
	}
	return existing + " " + added
}
