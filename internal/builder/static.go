package builder

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/observability"
)

// SyncStatic re-mirrors the static directory into the output root without
// touching rendered documents. The dev server calls this when only static
// assets changed.
func (b *Builder) SyncStatic(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.copyStatic(ctx)
}

// copyStatic mirrors the static directory into the output root. Files whose
// destination already exists with an equal or newer mtime are skipped, so
// repeated builds only touch what changed. Source mtimes are preserved on
// the copies to keep that comparison meaningful.
func (b *Builder) copyStatic(ctx context.Context) error {
	root := b.cfg.Paths.Static
	if root == "" {
		return nil
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		observability.DebugContext(ctx, "no static directory", slog.String("static", root))
		return nil
	}

	copied := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(b.cfg.Paths.Output, rel)

		srcInfo, err := d.Info()
		if err != nil {
			return err
		}
		if destInfo, err := os.Stat(dest); err == nil && !srcInfo.ModTime().After(destInfo.ModTime()) {
			return nil
		}

		if err := copyFile(path, dest, srcInfo); err != nil {
			return errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "copy static file "+rel)
		}
		copied++
		return nil
	})
	if err != nil {
		return err
	}

	observability.DebugContext(ctx, "static assets copied", slog.Int("count", copied))
	return nil
}

func copyFile(src, dest string, info fs.FileInfo) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dest, info.ModTime(), info.ModTime())
}
