package integration

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/builder"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
)

// writeSiteFixture materializes a site tree in a fresh temp directory and
// makes it the working directory, matching how sitebuilder is run from a
// site root. Keys are root-relative paths, values are file contents.
func writeSiteFixture(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "create fixture dir for %s", rel)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "write fixture file %s", rel)
	}
	t.Chdir(root)
	return root
}

// loadSiteConfig parses config.yml from the fixture root.
func loadSiteConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Load("config.yml")
	require.NoError(t, err, "fixture configuration must parse")
	return cfg
}

// newSiteBuilder constructs a builder over the fixture configuration with a
// quiet logger. The builder is closed on test cleanup.
func newSiteBuilder(t *testing.T, cfg *config.Config) *builder.Builder {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b, err := builder.New(cfg, logger, nil)
	require.NoError(t, err, "builder construction must succeed")
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// buildSite runs a full build and requires a clean result.
func buildSite(t *testing.T, b *builder.Builder) *builder.Result {
	t.Helper()

	result, err := b.Build(t.Context())
	require.NoError(t, err, "full build must succeed")
	require.Equal(t, builder.StatusSuccess, result.Status)
	return result
}

// readOutput reads one document under the output root.
func readOutput(t *testing.T, rel string) string {
	t.Helper()

	body, err := os.ReadFile(filepath.Join("output", filepath.FromSlash(rel)))
	require.NoError(t, err, "expected output document %s", rel)
	return string(body)
}

// outputExists reports whether a document exists under the output root.
func outputExists(rel string) bool {
	_, err := os.Stat(filepath.Join("output", filepath.FromSlash(rel)))
	return err == nil
}
