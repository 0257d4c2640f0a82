package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_MinimalConfig_DefaultsApplied(t *testing.T) {
	cfg, err := Parse([]byte("site:\n  title: My Notes\n"))
	require.NoError(t, err)

	assert.Equal(t, "My Notes", cfg.Site.Title)
	assert.Equal(t, "notes", cfg.Paths.Source)
	assert.Equal(t, "output", cfg.Paths.Output)
	assert.Equal(t, ".cache/images", cfg.Paths.Cache)
	assert.Equal(t, 10, cfg.Notes.Concurrency)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, 500*time.Millisecond, cfg.Dev.QuietWindowDuration())
	assert.Equal(t, time.Duration(0), cfg.Dev.RebuildIntervalDuration())
}

func TestParse_DefaultPluginOrder(t *testing.T) {
	cfg, err := Parse([]byte("site:\n  title: t\n"))
	require.NoError(t, err)

	names := make([]string, 0, len(cfg.Notes.Plugins))
	for _, p := range cfg.Notes.Plugins {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"frontmatter", "footnotes", "markdown", "date"}, names)

	require.Len(t, cfg.Build.Plugins, 1)
	assert.Equal(t, "link_resolution", cfg.Build.Plugins[0].Name)
}

func TestParse_UserPluginOverridesDefaultByName(t *testing.T) {
	yaml := `
site:
  title: t
notes:
  plugins:
    - name: markdown
      settings:
        highlight_style: dracula
    - name: image_encoding
      after: [markdown]
`
	cfg, err := Parse([]byte(yaml))
	require.NoError(t, err)

	var md, img *PluginConfig
	for i := range cfg.Notes.Plugins {
		switch cfg.Notes.Plugins[i].Name {
		case "markdown":
			md = &cfg.Notes.Plugins[i]
		case "image_encoding":
			img = &cfg.Notes.Plugins[i]
		}
	}
	require.NotNil(t, md)
	assert.Equal(t, "dracula", md.Settings["highlight_style"])
	require.NotNil(t, img)
	assert.Equal(t, []string{"markdown"}, img.After)
	// overridden default keeps its position, additions go last
	assert.Equal(t, "image_encoding", cfg.Notes.Plugins[len(cfg.Notes.Plugins)-1].Name)
}

func TestParse_DisabledDefaultPlugin(t *testing.T) {
	yaml := `
site:
  title: t
notes:
  plugins:
    - name: footnotes
      enabled: false
`
	cfg, err := Parse([]byte(yaml))
	require.NoError(t, err)

	for _, p := range cfg.Notes.Plugins {
		if p.Name == "footnotes" {
			assert.False(t, p.IsEnabled())
			return
		}
	}
	t.Fatal("footnotes plugin not found")
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("SITE_TITLE_TEST", "Expanded Title")
	cfg, err := Parse([]byte("site:\n  title: ${SITE_TITLE_TEST}\n"))
	require.NoError(t, err)
	assert.Equal(t, "Expanded Title", cfg.Site.Title)
}

func TestParse_InvalidURLPattern_Fails(t *testing.T) {
	yaml := `
site:
  title: t
templates:
  - name: note
    file: note.html
    url_pattern: /notes/fixed/
`
	_, err := Parse([]byte(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url_pattern must contain {slug}")
}

func TestParse_DuplicatePluginName_Fails(t *testing.T) {
	yaml := `
site:
  title: t
notes:
  plugins:
    - name: extra
    - name: extra
`
	_, err := Parse([]byte(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate plugin")
}

func TestParse_InvalidDuration_Fails(t *testing.T) {
	_, err := Parse([]byte("site:\n  title: t\ndev:\n  quiet_window: fast\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_MissingFile_Fails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoad_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("site:\n  title: from file\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from file", cfg.Site.Title)
}

func TestNormalizeLogLevel_Folds(t *testing.T) {
	assert.Equal(t, LogLevelDebug, NormalizeLogLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, NormalizeLogLevel("Warning"))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel("bogus"))
}

func TestMergePlugins_EmptyUser_KeepsDefaults(t *testing.T) {
	defaults := defaultNotePlugins()
	merged := MergePlugins(defaults, nil)
	assert.Equal(t, defaults, merged)
}
