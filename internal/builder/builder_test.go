package builder

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns a config with a populated workspace: an empty notes
// tree, a default template, and the standard plugin chain.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		Site: config.SiteConfig{
			Title:    "Test Site",
			BaseURL:  "https://example.com",
			Language: "en",
		},
		Paths: config.PathsConfig{
			Source:    filepath.Join(root, "notes"),
			Static:    filepath.Join(root, "static"),
			Templates: filepath.Join(root, "templates"),
			Output:    filepath.Join(root, "public"),
			Cache:     filepath.Join(root, "cache"),
		},
		Notes: config.NotesConfig{
			Plugins: []config.PluginConfig{
				{Name: "frontmatter"},
				{Name: "date"},
				{Name: "markdown"},
			},
			Concurrency: 4,
		},
		Build: config.BuildConfig{
			Plugins: []config.PluginConfig{{Name: "link_resolution"}},
		},
	}
	require.NoError(t, os.MkdirAll(cfg.Paths.Source, 0o755))
	writeFile(t, filepath.Join(cfg.Paths.Templates, "default.html"),
		`<html><body>{{ .Page.Content | safeHTML }}</body></html>`)
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestBuilder(t *testing.T, cfg *config.Config) *Builder {
	t.Helper()
	b, err := New(cfg, testLogger(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func readOutput(t *testing.T, cfg *config.Config, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.Paths.Output, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestBuild_ResolvesCrossPageLinks(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Paths.Source, "a.md"),
		"---\ntitle: A\nstatus: publish\n---\n\nSee [B](b.md).\n")
	writeFile(t, filepath.Join(cfg.Paths.Source, "b.md"),
		"---\ntitle: B\nstatus: publish\n---\n\nBody of B.\n")

	b := newTestBuilder(t, cfg)
	result, err := b.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 2, result.Written)
	assert.NotEmpty(t, result.BuildID)

	doc := readOutput(t, cfg, "a/index.html")
	assert.Contains(t, doc, `href="/b/"`)
	assert.NotContains(t, doc, "b.md")
	assert.FileExists(t, filepath.Join(cfg.Paths.Output, "b", "index.html"))
}

func TestBuild_ScratchPagesNeverWritten(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Paths.Source, "kept.md"),
		"---\ntitle: Kept\nstatus: publish\n---\n\nKept body.\n")
	// No frontmatter means scratch: processed, never written.
	writeFile(t, filepath.Join(cfg.Paths.Source, "idea.md"),
		"# Idea\n\nHalf a thought.\n")

	b := newTestBuilder(t, cfg)
	result, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 1, result.Written)
	assert.Equal(t, 1, result.Scratch)
	assert.NoFileExists(t, filepath.Join(cfg.Paths.Output, "idea", "index.html"))
}

func TestBuild_TemplateRuleSelectsTemplateAndURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Templates = []config.TemplateRule{{
		Name:       "blog",
		File:       "post.html",
		Predicates: []string{"is_published"},
		URLPattern: "/blog/{slug}/",
	}}
	writeFile(t, filepath.Join(cfg.Paths.Templates, "post.html"),
		`<article>{{ .Page.Title }}</article>`)
	writeFile(t, filepath.Join(cfg.Paths.Source, "hello.md"),
		"---\ntitle: Hello\nstatus: publish\n---\n\nHi.\n")
	writeFile(t, filepath.Join(cfg.Paths.Source, "wip.md"),
		"---\ntitle: WIP\nstatus: draft\n---\n\nStill cooking.\n")

	b := newTestBuilder(t, cfg)
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	post := readOutput(t, cfg, "blog/hello/index.html")
	assert.Contains(t, post, "<article>Hello</article>")

	// Drafts match no rule, so they land at the default URL with the
	// default template.
	draft := readOutput(t, cfg, "wip/index.html")
	assert.Contains(t, draft, "<body>")
	assert.NoFileExists(t, filepath.Join(cfg.Paths.Output, "blog", "wip", "index.html"))
}

func TestBuild_PageFailureWarnsByDefault(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Paths.Source, "good.md"),
		"---\ntitle: Good\nstatus: publish\n---\n\nFine.\n")
	writeFile(t, filepath.Join(cfg.Paths.Source, "bad.md"),
		"---\ntitle: [unclosed\n---\n\nBody.\n")

	b := newTestBuilder(t, cfg)
	result, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, result.Status)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Written)
	assert.FileExists(t, filepath.Join(cfg.Paths.Output, "good", "index.html"))
}

func TestBuild_FailFastAbortsOnPageError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Build.FailFast = true
	writeFile(t, filepath.Join(cfg.Paths.Source, "bad.md"),
		"---\ntitle: [unclosed\n---\n\nBody.\n")

	b := newTestBuilder(t, cfg)
	result, err := b.Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
}

func TestBuild_MissingSourceDirFails(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.RemoveAll(cfg.Paths.Source))

	b := newTestBuilder(t, cfg)
	result, err := b.Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileSystem))
}

func TestBuild_CleanOutputRemovesStaleDocuments(t *testing.T) {
	cfg := testConfig(t)
	cfg.Build.CleanOutput = true
	writeFile(t, filepath.Join(cfg.Paths.Output, "stale.html"), "old")
	writeFile(t, filepath.Join(cfg.Paths.Source, "note.md"),
		"---\ntitle: Note\nstatus: publish\n---\n\nBody.\n")

	b := newTestBuilder(t, cfg)
	_, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(cfg.Paths.Output, "stale.html"))
	assert.FileExists(t, filepath.Join(cfg.Paths.Output, "note", "index.html"))
}

func TestBuild_CopiesStaticAssets(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Paths.Static, "css", "site.css"), "body{color:red}")
	writeFile(t, filepath.Join(cfg.Paths.Source, "note.md"),
		"---\ntitle: Note\nstatus: publish\n---\n\nBody.\n")

	b := newTestBuilder(t, cfg)
	_, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "body{color:red}", readOutput(t, cfg, "css/site.css"))

	// A destination newer than its source is left alone.
	dest := filepath.Join(cfg.Paths.Output, "css", "site.css")
	writeFile(t, dest, "edited")
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(dest, future, future))

	_, err = b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "edited", readOutput(t, cfg, "css/site.css"))
}

func TestBuild_WritesFeeds(t *testing.T) {
	cfg := testConfig(t)
	cfg.Feeds = config.FeedsConfig{
		RSS:     config.RSSConfig{Enabled: true, Path: "rss.xml", Limit: 20},
		Sitemap: config.SitemapConfig{Enabled: true, Path: "sitemap.xml"},
	}
	writeFile(t, filepath.Join(cfg.Paths.Source, "note.md"),
		"---\ntitle: Note\nstatus: publish\ndate: 2025-03-10\n---\n\nBody.\n")

	b := newTestBuilder(t, cfg)
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	rss := readOutput(t, cfg, "rss.xml")
	assert.Contains(t, rss, "<link>https://example.com/note/</link>")
	sitemap := readOutput(t, cfg, "sitemap.xml")
	assert.Contains(t, sitemap, "<loc>https://example.com/note/</loc>")
}

func TestRebuildFiles_ReprocessesOnlyChangedPages(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Paths.Source, "alpha.md"),
		"---\ntitle: Alpha\nstatus: publish\n---\n\nFirst version.\n")
	betaPath := filepath.Join(cfg.Paths.Source, "beta.md")
	writeFile(t, betaPath,
		"---\ntitle: Beta\nstatus: publish\n---\n\nOriginal text.\n")

	b := newTestBuilder(t, cfg)
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	// Remove alpha's document so an unwanted re-render would be visible.
	require.NoError(t, os.Remove(filepath.Join(cfg.Paths.Output, "alpha", "index.html")))

	writeFile(t, betaPath,
		"---\ntitle: Beta\nstatus: publish\n---\n\nFresh text.\n")
	result, err := b.RebuildFiles(context.Background(), []string{betaPath})
	require.NoError(t, err)
	assert.True(t, result.Incremental)
	assert.Equal(t, 1, result.Written)
	assert.Contains(t, readOutput(t, cfg, "beta/index.html"), "Fresh text.")
	assert.NoFileExists(t, filepath.Join(cfg.Paths.Output, "alpha", "index.html"))
}

func TestRebuildFiles_MovedSlugRetiresOldDocument(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(cfg.Paths.Source, "post.md")
	writeFile(t, path, "---\ntitle: Gamma\nstatus: publish\n---\n\nBody.\n")

	b := newTestBuilder(t, cfg)
	_, err := b.Build(context.Background())
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(cfg.Paths.Output, "gamma", "index.html"))

	writeFile(t, path, "---\ntitle: Delta\nstatus: publish\n---\n\nBody.\n")
	_, err = b.RebuildFiles(context.Background(), []string{path})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cfg.Paths.Output, "delta", "index.html"))
	assert.NoFileExists(t, filepath.Join(cfg.Paths.Output, "gamma", "index.html"))
}

func TestRebuildFiles_DeletedSourceRemovesDocument(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(cfg.Paths.Source, "note.md")
	writeFile(t, path, "---\ntitle: Note\nstatus: publish\n---\n\nBody.\n")

	b := newTestBuilder(t, cfg)
	_, err := b.Build(context.Background())
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(cfg.Paths.Output, "note", "index.html"))

	require.NoError(t, os.Remove(path))
	result, err := b.RebuildFiles(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Written)
	assert.NoFileExists(t, filepath.Join(cfg.Paths.Output, "note", "index.html"))
}

func TestRebuildFiles_WithoutPriorBuildRunsFullBuild(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Paths.Source, "note.md"),
		"---\ntitle: Note\nstatus: publish\n---\n\nBody.\n")

	b := newTestBuilder(t, cfg)
	result, err := b.RebuildFiles(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, result.Incremental)
	assert.Equal(t, 1, result.Written)
}

func TestNew_UnknownPluginFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notes.Plugins = append(cfg.Notes.Plugins, config.PluginConfig{Name: "no_such_plugin"})

	_, err := New(cfg, testLogger(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
}

func TestBuild_CanceledContext(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Paths.Source, "note.md"),
		"---\ntitle: Note\nstatus: publish\n---\n\nBody.\n")

	b := newTestBuilder(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := b.Build(ctx)
	require.Error(t, err)
	assert.Equal(t, StatusCanceled, result.Status)
}

func TestOutputPathFor(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"/", "index.html"},
		{"", "index.html"},
		{"/b/", "b/index.html"},
		{"/blog/hello/", "blog/hello/index.html"},
		{"/about", "about.html"},
		{"/about.html", "about.html"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, outputPathFor(tt.url), tt.url)
	}
}
