package builder

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitebuilder/internal/observability"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

// processPages runs the note pipeline over every page with bounded
// concurrency. A failed page is dropped and counted unless fail_fast is set,
// in which case the first failure aborts the build. The returned slice keeps
// discovery order.
func (b *Builder) processPages(ctx context.Context, pages []*page.Context, result *Result) ([]*page.Context, error) {
	limit := b.cfg.Notes.Concurrency
	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	results := make([]*page.Context, len(pages))
	var failed atomic.Int64
	for i, pg := range pages {
		g.Go(func() error {
			pageCtx := observability.WithPage(gctx, pg.RelativePath)
			processed, err := b.manager.ProcessPage(pageCtx, pg)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				b.rec.IncPageResult("failed")
				if b.cfg.Build.FailFast {
					return err
				}
				observability.WarnContext(pageCtx, "page failed, continuing",
					slog.String("error", err.Error()))
				failed.Add(1)
				return nil
			}
			results[i] = processed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Failed += int(failed.Load())
	processed := make([]*page.Context, 0, len(results))
	for _, pg := range results {
		if pg != nil {
			processed = append(processed, pg)
		}
	}
	return processed, nil
}
