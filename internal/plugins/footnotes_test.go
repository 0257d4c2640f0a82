package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

func runFootnotes(t *testing.T, content string) string {
	t.Helper()
	p, err := newFootnotes(testDeps(nil), config.PluginConfig{Name: "footnotes"})
	require.NoError(t, err)
	pg := page.NewContext("/site/notes/a.md", "notes/a.md", nil)
	pg.Content = content
	out, err := p.Process(context.Background(), pg)
	require.NoError(t, err)
	return out.Content
}

func TestFootnotes_RenumbersByFirstAppearance(t *testing.T) {
	got := runFootnotes(t, "First[^b] then[^a].\n\n[^a]: Second note\n[^b]: First note")

	want := "First[^1] then[^2].\n\n[^1]: First note\n[^2]: Second note\n"
	assert.Equal(t, want, got)
}

func TestFootnotes_NoFootnotesUnchanged(t *testing.T) {
	content := "Just some text.\n\nAnother paragraph.\n"
	assert.Equal(t, content, runFootnotes(t, content))
}

func TestFootnotes_RepeatedReferenceSharesNumber(t *testing.T) {
	got := runFootnotes(t, "A[^n] and B[^n].\n\n[^n]: Shared note\n")
	assert.Contains(t, got, "A[^1] and B[^1].")
	assert.Contains(t, got, "[^1]: Shared note\n")
}

func TestFootnotes_ReferenceWithoutDefinition(t *testing.T) {
	got := runFootnotes(t, "Dangling[^x] reference.")
	assert.Equal(t, "Dangling[^1] reference.", got)
}

func TestFootnotes_DefinitionsMoveToEnd(t *testing.T) {
	got := runFootnotes(t, "Intro[^i].\n\n[^i]: Early definition\n\nTrailing paragraph.\n")

	assert.Contains(t, got, "Intro[^1].")
	assert.Contains(t, got, "Trailing paragraph.")
	// The definition block ends the document.
	assert.Contains(t, got, "Trailing paragraph.\n\n[^1]: Early definition\n")
	assert.NotContains(t, got, "[^i]")
}

func TestFootnotes_CollapsesBlankRunsLeftByRemovedDefinitions(t *testing.T) {
	got := runFootnotes(t, "Text[^a].\n\n[^a]: Note\n\nMore text.\n")
	assert.NotContains(t, got, "\n\n\n")
}

func TestFootnotes_NamedLabelsBecomeSequential(t *testing.T) {
	got := runFootnotes(t, "See[^why] and[^how] and[^why].\n\n"+
		"[^how]: The method\n"+
		"[^why]: The reason\n")

	assert.Contains(t, got, "See[^1] and[^2] and[^1].")
	assert.Contains(t, got, "[^1]: The reason\n[^2]: The method\n")
}
