package builder

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/observability"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

// isNoteFile reports whether path names a markdown source.
func isNoteFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// discoverPages walks the source tree and creates one page context per
// markdown file. WalkDir visits lexically, so discovery order is stable
// across runs.
func (b *Builder) discoverPages(ctx context.Context) ([]*page.Context, error) {
	root := b.cfg.Paths.Source
	if _, err := os.Stat(root); err != nil {
		return nil, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "source directory "+root)
	}

	var pages []*page.Context
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !isNoteFile(path) {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "read source "+path)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		pages = append(pages, page.NewContext(path, rel, raw))
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.DebugContext(ctx, "sources discovered", slog.Int("count", len(pages)))
	return pages, nil
}
