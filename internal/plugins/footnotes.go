package plugins

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

var (
	footnoteRefPattern = regexp.MustCompile(`\[\^([^\]]+)\]`)
	footnoteDefPattern = regexp.MustCompile(`(?m)^\[\^([^\]]+)\]: (.+)$`)
	blankRunPattern    = regexp.MustCompile(`\n\n+`)
)

// footnotesPlugin renumbers footnotes sequentially by first appearance and
// moves all definitions to the end of the document in that order. Authors can
// then use any labels they like and insert footnotes out of order without the
// rendered numbering jumping around.
type footnotesPlugin struct{}

func newFootnotes(plugin.Deps, config.PluginConfig) (plugin.NotePlugin, error) {
	return footnotesPlugin{}, nil
}

func (footnotesPlugin) Name() string { return "footnotes" }

func (footnotesPlugin) Process(_ context.Context, pg *page.Context) (*page.Context, error) {
	content := pg.Content

	var order []string
	seen := make(map[string]bool)
	for _, m := range footnoteRefPattern.FindAllStringSubmatch(content, -1) {
		if id := m[1]; !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	if len(order) == 0 {
		return pg, nil
	}

	definitions := make(map[string]string)
	for _, m := range footnoteDefPattern.FindAllStringSubmatch(content, -1) {
		definitions[m[1]] = m[2]
	}

	renumber := make(map[string]string, len(order))
	for i, id := range order {
		renumber[id] = strconv.Itoa(i + 1)
	}

	content = footnoteRefPattern.ReplaceAllStringFunc(content, func(match string) string {
		id := footnoteRefPattern.FindStringSubmatch(match)[1]
		if n, ok := renumber[id]; ok {
			return "[^" + n + "]"
		}
		return match
	})

	// Strip the original definition lines, then collapse the blank-line runs
	// the removals leave behind.
	content = footnoteDefPattern.ReplaceAllString(content, "")
	content = blankRunPattern.ReplaceAllString(content, "\n\n")

	if len(definitions) > 0 {
		if strings.TrimSpace(content) != "" && !strings.HasSuffix(content, "\n\n") {
			if strings.HasSuffix(content, "\n") {
				content += "\n"
			} else {
				content += "\n\n"
			}
		}
		var b strings.Builder
		b.WriteString(content)
		for _, id := range order {
			text, ok := definitions[id]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "[^%s]: %s\n", renumber[id], text)
		}
		content = b.String()
	}

	pg.Content = content
	return pg, nil
}
