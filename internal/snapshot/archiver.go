package snapshot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"git.home.luguber.info/inful/sitebuilder/internal/retry"
)

// Options configures an Archiver.
type Options struct {
	Dir           string       // snapshot cache directory
	MaxConcurrent int64        // parallel fetch ceiling
	MaxAttempts   int          // lifetime attempt cap per URL
	Production    bool         // serve cached snapshots only, never crawl
	Policy        retry.Policy // in-run backoff between attempts
}

// Archiver snapshots external URLs into {Dir}/{id}/index.html with
// metadata.json bookkeeping. Fetch errors are recorded in metadata, never
// propagated; recorded attempts persist across builds so a dead URL stops
// costing network time once it hits the attempt cap.
type Archiver struct {
	opts    Options
	fetcher Fetcher
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]*Metadata
}

// New creates an Archiver. Zero option fields get defaults (10 concurrent,
// 3 attempts, default retry policy).
func New(fetcher Fetcher, opts Options, logger *slog.Logger) *Archiver {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 10
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Policy == (retry.Policy{}) {
		opts.Policy = retry.DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		opts:    opts,
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]*Metadata),
	}
}

// Lookup returns the metadata for a URL, reading metadata.json on first
// access. A nil result means the URL was never attempted.
func (a *Archiver) Lookup(url string) *Metadata {
	id := URLID(url)

	a.mu.Lock()
	meta, seen := a.cache[id]
	a.mu.Unlock()
	if seen {
		return meta
	}

	meta, err := LoadMetadata(filepath.Join(a.opts.Dir, id, MetadataFile))
	if err != nil {
		if !os.IsNotExist(err) {
			a.logger.Warn("snapshot metadata unreadable", "url", url, "error", err)
		}
		meta = nil
	}

	a.mu.Lock()
	a.cache[id] = meta
	a.mu.Unlock()
	return meta
}

// needsSnapshot applies the crawl policy: crawl when the URL was never
// attempted or its last attempt failed retryably, skip successes, oversized
// documents, exhausted URLs, and everything in production mode.
func (a *Archiver) needsSnapshot(url string) bool {
	meta := a.Lookup(url)
	if meta == nil {
		return !a.opts.Production
	}
	if meta.Success || meta.TooLarge {
		return false
	}
	if meta.Attempts >= a.opts.MaxAttempts {
		a.logger.Debug("snapshot attempts exhausted", "url", url, "attempts", meta.Attempts)
		return false
	}
	return !a.opts.Production
}

// ArchiveAll snapshots every URL that still needs one, at most MaxConcurrent
// in flight. Only context cancellation aborts; fetch failures land in
// metadata.
func (a *Archiver) ArchiveAll(ctx context.Context, urls []string) error {
	var pending []string
	for _, u := range urls {
		if a.needsSnapshot(u) {
			pending = append(pending, u)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(a.opts.MaxConcurrent)
	for _, url := range pending {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		go func(url string) {
			defer sem.Release(1)
			a.archiveOne(ctx, url)
		}(url)
	}
	// Drain: wait for every in-flight fetch.
	return sem.Acquire(ctx, a.opts.MaxConcurrent)
}

func (a *Archiver) archiveOne(ctx context.Context, url string) {
	id := URLID(url)
	dir := filepath.Join(a.opts.Dir, id)

	attempts := 0
	if meta := a.Lookup(url); meta != nil {
		attempts = meta.Attempts
	}

	var lastErr error
	success := false
	tooLarge := false

fetch:
	for try := 0; try <= a.opts.Policy.MaxRetries && attempts < a.opts.MaxAttempts; try++ {
		if try > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				break fetch
			case <-time.After(a.opts.Policy.Delay(try)):
			}
		}

		attempts++
		a.logger.Info("taking snapshot", "url", url, "attempt", attempts, "max_attempts", a.opts.MaxAttempts)

		data, err := a.fetcher.Fetch(ctx, url)
		if err == nil {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				lastErr = err
				break fetch
			}
			if err := os.WriteFile(filepath.Join(dir, DocumentFile), data, 0o644); err != nil {
				lastErr = err
				break fetch
			}
			success = true
			lastErr = nil
			break fetch
		}

		lastErr = err
		if errors.Is(err, ErrTooLarge) {
			tooLarge = true
			a.logger.Warn("snapshot too large", "url", url)
			break fetch
		}
		if ctx.Err() != nil {
			break fetch
		}
		a.logger.Warn("snapshot attempt failed", "url", url, "attempt", attempts, "error", err)
	}

	meta := &Metadata{
		CrawledDate: time.Now(),
		OriginalURL: url,
		Success:     success,
		Attempts:    attempts,
		TooLarge:    tooLarge,
	}
	if !success && lastErr != nil {
		meta.LastError = lastErr.Error()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		a.logger.Warn("snapshot dir unavailable", "url", url, "error", err)
		return
	}
	if err := meta.Save(filepath.Join(dir, MetadataFile)); err != nil {
		a.logger.Warn("snapshot metadata write failed", "url", url, "error", err)
	}

	a.mu.Lock()
	a.cache[id] = meta
	a.mu.Unlock()
}

// CopyToOutput publishes every successful snapshot under
// {outputRoot}/snapshots/{id}/. Repeated calls are cheap: existing newer
// destinations are skipped.
func (a *Archiver) CopyToOutput(outputRoot string) error {
	entries, err := os.ReadDir(a.opts.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		srcDir := filepath.Join(a.opts.Dir, id)

		meta, err := LoadMetadata(filepath.Join(srcDir, MetadataFile))
		if err != nil || !meta.Success {
			continue
		}
		if _, err := os.Stat(filepath.Join(srcDir, DocumentFile)); err != nil {
			continue
		}

		dstDir := filepath.Join(outputRoot, "snapshots", id)
		if err := os.MkdirAll(dstDir, 0o755); err != nil {
			return err
		}
		for _, name := range []string{DocumentFile, MetadataFile} {
			if err := copyFileIfNewer(filepath.Join(srcDir, name), filepath.Join(dstDir, name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFileIfNewer(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if dstInfo, err := os.Stat(dst); err == nil && dstInfo.ModTime().After(srcInfo.ModTime()) {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
