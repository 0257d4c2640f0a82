package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/buildlog"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

// serveConfig returns a config with a populated workspace whose template
// carries a head section, so script injection is observable.
func serveConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		Site: config.SiteConfig{
			Title:    "Dev Site",
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
		Dev: config.DevConfig{
			Host:        "127.0.0.1",
			QuietWindow: "50ms",
			MaxDelay:    "1s",
		},
	}
	require.NoError(t, os.MkdirAll(cfg.Paths.Source, 0o755))
	writeTestFile(t, filepath.Join(cfg.Paths.Templates, "default.html"),
		`<html><head><title>{{ .Page.Title }}</title></head><body>{{ .Page.Content | safeHTML }}</body></html>`)
	return cfg
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestServer(t *testing.T, cfg *config.Config, rec metrics.Recorder, promReg *prom.Registry) *Server {
	t.Helper()
	s, err := New(cfg, "", testLogger(), rec, promReg)
	require.NoError(t, err)
	t.Cleanup(s.close)
	return s
}

func lastBroadcast(s *Server) string {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	return s.hub.lastBuild
}

func TestServer_ServesInjectedHTML(t *testing.T) {
	cfg := serveConfig(t)
	writeTestFile(t, filepath.Join(cfg.Paths.Source, "home.md"),
		"---\ntitle: Home\nstatus: publish\n---\n\n# Welcome\n")

	s := newTestServer(t, cfg, nil, nil)
	s.applyChanges(t.Context(), ChangeSet{Full: true})

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/home/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := string(body)
	assert.Contains(t, page, "<title>Home</title>")
	assert.Contains(t, page, reloadScriptTag)
	assert.Less(t, strings.Index(page, reloadScriptTag), strings.Index(page, "</head>"))
}

func TestServer_ReloadScriptEndpoint(t *testing.T) {
	cfg := serveConfig(t)
	s := newTestServer(t, cfg, nil, nil)

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/__reload.js")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "application/javascript; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, ReloadScript, string(body))
}

func TestServer_StaticServedVerbatim(t *testing.T) {
	cfg := serveConfig(t)
	writeTestFile(t, filepath.Join(cfg.Paths.Static, "app.css"), "body { margin: 0; }")

	s := newTestServer(t, cfg, nil, nil)
	s.applyChanges(t.Context(), ChangeSet{Full: true})

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/app.css")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "body { margin: 0; }", string(body))
}

func TestServer_BuildHistoryEndpoint(t *testing.T) {
	cfg := serveConfig(t)
	cfg.Dev.BuildLog = filepath.Join(t.TempDir(), "builds.db")
	writeTestFile(t, filepath.Join(cfg.Paths.Source, "a.md"),
		"---\ntitle: A\nstatus: publish\n---\n\nBody.\n")

	s := newTestServer(t, cfg, nil, nil)
	s.applyChanges(t.Context(), ChangeSet{Full: true})

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/builds")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var records []buildlog.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].BuildID)
	assert.True(t, records[0].Success)
	assert.False(t, records[0].Incremental)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	cfg := serveConfig(t)
	cfg.Dev.Metrics = true
	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)

	s := newTestServer(t, cfg, rec, reg)
	s.applyChanges(t.Context(), ChangeSet{Full: true})

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "sitebuilder_build_outcomes_total")
}

func TestApplyChanges_IncrementalRebuildBroadcastsNewBuild(t *testing.T) {
	cfg := serveConfig(t)
	note := filepath.Join(cfg.Paths.Source, "post.md")
	writeTestFile(t, note, "---\ntitle: Post\nstatus: publish\n---\n\nFirst draft.\n")

	s := newTestServer(t, cfg, nil, nil)
	s.applyChanges(t.Context(), ChangeSet{Full: true})
	firstBuild := lastBroadcast(s)
	require.NotEmpty(t, firstBuild)

	writeTestFile(t, note, "---\ntitle: Post\nstatus: publish\n---\n\nSecond draft.\n")
	s.applyChanges(t.Context(), ChangeSet{Sources: []string{note}})

	assert.NotEqual(t, firstBuild, lastBroadcast(s))

	out, err := os.ReadFile(filepath.Join(cfg.Paths.Output, "post", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "Second draft.")
}

func TestApplyChanges_StaticOnlyStillReloadsBrowsers(t *testing.T) {
	cfg := serveConfig(t)
	writeTestFile(t, filepath.Join(cfg.Paths.Static, "style.css"), "body{}")

	s := newTestServer(t, cfg, nil, nil)
	s.applyChanges(t.Context(), ChangeSet{Full: true})
	before := lastBroadcast(s)

	s.applyChanges(t.Context(), ChangeSet{Static: true})
	assert.NotEqual(t, before, lastBroadcast(s))

	copied, err := os.ReadFile(filepath.Join(cfg.Paths.Output, "style.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(copied))
}

func TestReloadConfig_BadFileKeepsPreviousConfiguration(t *testing.T) {
	cfg := serveConfig(t)
	s := newTestServer(t, cfg, nil, nil)
	s.configPath = filepath.Join(t.TempDir(), "config.yml")
	writeTestFile(t, s.configPath, "site: [broken")

	previous := s.builder
	s.applyChanges(t.Context(), ChangeSet{Config: true})

	assert.Same(t, previous, s.builder)
	assert.Same(t, cfg, s.cfg)
}

func TestReloadConfig_SwapsBuilderAndRebuilds(t *testing.T) {
	cfg := serveConfig(t)
	writeTestFile(t, filepath.Join(cfg.Paths.Source, "n.md"),
		"---\ntitle: N\nstatus: publish\n---\n\nHello.\n")

	configYAML := `
site:
  title: Reloaded Site
  base_url: https://example.com
paths:
  source: ` + cfg.Paths.Source + `
  static: ` + cfg.Paths.Static + `
  templates: ` + cfg.Paths.Templates + `
  output: ` + cfg.Paths.Output + `
  cache: ` + cfg.Paths.Cache + `
`
	s := newTestServer(t, cfg, nil, nil)
	s.configPath = filepath.Join(t.TempDir(), "config.yml")
	writeTestFile(t, s.configPath, configYAML)

	previous := s.builder
	s.applyChanges(t.Context(), ChangeSet{Config: true})

	assert.NotSame(t, previous, s.builder)
	assert.Equal(t, "Reloaded Site", s.cfg.Site.Title)

	out, err := os.ReadFile(filepath.Join(cfg.Paths.Output, "n", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "Hello.")
}
