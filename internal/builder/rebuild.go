package builder

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/observability"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

// RebuildFiles reprocesses the given markdown sources against the page set
// retained from the last full build, runs the build plugins over the merged
// set, and re-renders only the changed pages. Static assets and feeds are
// left alone, and documents of unchanged pages are not re-rendered; the next
// full build squares up any cross-page staleness. A deleted source drops its
// page and removes its document. Falls back to a full build when none has
// happened yet.
func (b *Builder) RebuildFiles(ctx context.Context, changed []string) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pages == nil || b.engine == nil {
		return b.buildLocked(ctx)
	}

	result := &Result{
		BuildID:     uuid.NewString(),
		StartTime:   time.Now(),
		Pages:       len(changed),
		Incremental: true,
	}
	ctx = observability.WithBuildID(ctx, result.BuildID)
	observability.InfoContext(ctx, "incremental rebuild started",
		slog.Int("changed", len(changed)))

	var fresh []*page.Context
	prevOutputs := make(map[string]string)

	err := b.runStage(ctx, "process", func(ctx context.Context) error {
		for _, path := range changed {
			if err := ctx.Err(); err != nil {
				return err
			}

			rel, ok := b.sourceRel(path)
			if !ok {
				observability.WarnContext(ctx, "changed file outside source tree",
					slog.String("path", path))
				continue
			}
			// Canonical form matches what discovery produced, so retained
			// pages are found regardless of how the caller spelled the path.
			src := filepath.Join(b.cfg.Paths.Source, rel)

			raw, err := os.ReadFile(src)
			if os.IsNotExist(err) {
				b.dropPage(ctx, src)
				continue
			}
			if err != nil {
				observability.WarnContext(ctx, "read changed source failed",
					slog.String("path", src), slog.String("error", err.Error()))
				result.Failed++
				continue
			}

			pg := page.NewContext(src, rel, raw)
			pageCtx := observability.WithPage(ctx, pg.RelativePath)
			processed, err := b.manager.ProcessPage(pageCtx, pg)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				b.rec.IncPageResult("failed")
				observability.WarnContext(pageCtx, "page failed, keeping previous version",
					slog.String("error", err.Error()))
				result.Failed++
				continue
			}

			if old := b.replacePage(processed); old != nil {
				prevOutputs[processed.SourcePath] = old.OutputPath
			}
			fresh = append(fresh, processed)
		}
		return nil
	})
	if err != nil {
		return b.finish(ctx, result, err)
	}
	if len(fresh) == 0 {
		return b.finish(ctx, result, nil)
	}

	// The build plugins see the merged set so slug maps and other cross-page
	// state stay consistent with what the full build produced.
	err = b.runStage(ctx, "build_plugins", func(ctx context.Context) error {
		return b.runner.Execute(ctx, b.pages)
	})
	if err != nil {
		return b.finish(ctx, result, err)
	}

	err = b.runStage(ctx, "render", func(ctx context.Context) error {
		return b.renderPages(ctx, b.engine, result, fresh, page.NewAccessor(b.pages))
	})
	if err != nil {
		return b.finish(ctx, result, err)
	}

	b.removeStaleOutputs(ctx, fresh, prevOutputs)
	return b.finish(ctx, result, nil)
}

// sourceRel maps a changed path, absolute or workspace-relative, onto its
// path inside the source tree.
func (b *Builder) sourceRel(path string) (string, bool) {
	absRoot, err := filepath.Abs(b.cfg.Paths.Source)
	if err != nil {
		return "", false
	}
	abs := path
	if !filepath.IsAbs(abs) {
		if a, err := filepath.Abs(abs); err == nil {
			abs = a
		}
	}
	rel, err := filepath.Rel(absRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// replacePage swaps the retained page with the same source path and returns
// the one it replaced, or appends a new source and returns nil.
func (b *Builder) replacePage(pg *page.Context) *page.Context {
	for i, old := range b.pages {
		if old.SourcePath == pg.SourcePath {
			b.pages[i] = pg
			return old
		}
	}
	b.pages = append(b.pages, pg)
	return nil
}

// dropPage removes the page for a deleted source along with its rendered
// document.
func (b *Builder) dropPage(ctx context.Context, sourcePath string) {
	for i, pg := range b.pages {
		if pg.SourcePath != sourcePath {
			continue
		}
		if pg.OutputPath != "" {
			if err := os.Remove(pg.OutputPath); err != nil && !os.IsNotExist(err) {
				observability.WarnContext(ctx, "remove document for deleted source failed",
					slog.String("path", pg.OutputPath), slog.String("error", err.Error()))
			}
		}
		b.pages = append(b.pages[:i], b.pages[i+1:]...)
		observability.InfoContext(ctx, "source deleted, document removed",
			slog.String("source", sourcePath))
		return
	}
}

// removeStaleOutputs deletes documents whose page moved to a different URL
// or stopped being renderable. A page whose render failed keeps its last
// good document.
func (b *Builder) removeStaleOutputs(ctx context.Context, fresh []*page.Context, prevOutputs map[string]string) {
	for _, pg := range fresh {
		old, ok := prevOutputs[pg.SourcePath]
		if !ok || old == "" || old == pg.OutputPath {
			continue
		}
		if pg.Status.Renderable() && pg.OutputPath == "" {
			continue
		}
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			observability.WarnContext(ctx, "remove stale document failed",
				slog.String("path", old), slog.String("error", err.Error()))
		}
	}
}
