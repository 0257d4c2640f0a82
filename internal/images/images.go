// Package images is the image encoding engine: it locates every local image
// reference in a page's rendered markup (plus its featured-photo list),
// produces width-scaled derivatives in the configured raster format behind a
// content-addressed disk cache, publishes them into the output tree, and
// rewrites the page markup to responsive forms.
//
// Encoding is synchronous CPU-bound work; the cache directory is the only
// cross-page shared state and assumes a single writer.
package images

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

// Settings is the image_encoding plugin configuration.
type Settings struct {
	Format         string `yaml:"format"`
	Quality        int    `yaml:"quality"`
	Responsive     bool   `yaml:"responsive"`
	Widths         []int  `yaml:"widths"`
	MaxHeight      int    `yaml:"max_height"`
	PictureElement bool   `yaml:"picture_element"`
	LazyLoading    bool   `yaml:"lazy_loading"`
	CacheDir       string `yaml:"cache_dir"`
}

// Roots is the directory layout the engine works against. Cache is already
// resolved (plugin cache_dir override applied).
type Roots struct {
	Source string
	Static string
	Output string
	Cache  string
}

// Engine encodes the images of one page at a time.
type Engine struct {
	settings Settings
	roots    Roots
	logger   *slog.Logger
	rec      metrics.Recorder
}

// NewEngine validates settings and probes the output format with a trivial
// encode. A failed probe is returned to the caller, which degrades the
// plugin to a no-op.
func NewEngine(settings Settings, roots Roots, logger *slog.Logger, rec metrics.Recorder) (*Engine, error) {
	if settings.Format == "" {
		settings.Format = "jpeg"
	}
	canonical, ok := CanonicalFormat(settings.Format)
	if !ok {
		return nil, fmt.Errorf("unsupported image format %q", settings.Format)
	}
	settings.Format = canonical
	if settings.Quality <= 0 {
		settings.Quality = DefaultQuality
	}
	if err := ProbeFormat(settings.Format, settings.Quality); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Engine{settings: settings, roots: roots, logger: logger, rec: rec}, nil
}

// EncodePage processes every image the page references. Per-image failures
// are logged and skipped; they never fail the page.
func (e *Engine) EncodePage(ctx context.Context, pg *page.Context) error {
	refs := extractImageRefs(pg.Content)
	refs = appendFeaturedRefs(refs, pg.FeaturedPhotos)
	if len(refs) == 0 {
		return nil
	}

	processed := make(map[string]page.EncodedImage, len(refs))
	results := make([]page.EncodedImage, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		enc, err := e.processRef(ref, pg)
		if err != nil {
			e.logger.Warn("image skipped", "ref", ref, "page", pg.RelativePath, "error", err)
			e.rec.IncImageResult(metrics.ImageSkipped)
			continue
		}
		processed[ref] = enc
		results = append(results, enc)
	}

	pg.Images = &page.ImageResults{Images: results}
	if len(processed) == 0 {
		return nil
	}

	rewritten, err := e.rewriteMarkup(pg.Content, processed)
	if err != nil {
		e.logger.Warn("markup rewrite failed", "page", pg.RelativePath, "error", err)
	} else {
		pg.Content = rewritten
	}

	updateFeaturedPhotos(pg.FeaturedPhotos, processed)
	return nil
}

// appendFeaturedRefs treats featured-photo paths as additional references.
func appendFeaturedRefs(refs []string, photos []page.FeaturedPhoto) []string {
	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		seen[r] = true
	}
	for _, photo := range photos {
		p := photo.Path
		if p == "" || isExternalRef(p) || seen[p] {
			continue
		}
		seen[p] = true
		refs = append(refs, p)
	}
	return refs
}

// updateFeaturedPhotos points each processed entry at its largest-width
// derivative. Unresolved entries stay untouched.
func updateFeaturedPhotos(photos []page.FeaturedPhoto, processed map[string]page.EncodedImage) {
	for i := range photos {
		if enc, ok := processed[photos[i].Path]; ok {
			photos[i].URL = enc.LargestURL()
		}
	}
}

// processRef runs the full per-image pipeline: resolve, cache, encode,
// publish.
func (e *Engine) processRef(ref string, pg *page.Context) (page.EncodedImage, error) {
	src, root, ok := e.resolveSource(ref, filepath.Dir(pg.SourcePath))
	if !ok {
		return page.EncodedImage{}, fmt.Errorf("source not found")
	}

	info, err := os.Stat(src)
	if err != nil {
		return page.EncodedImage{}, err
	}

	key := cacheKey(src, root)
	dir := filepath.Join(e.roots.Cache, key)

	if cacheValid(dir, info.ModTime()) {
		e.rec.IncImageResult(metrics.ImageCached)
	} else {
		if err := e.regenerate(src, dir); err != nil {
			e.rec.IncImageResult(metrics.ImageFailed)
			return page.EncodedImage{}, err
		}
		e.rec.IncImageResult(metrics.ImageEncoded)
	}

	derivatives, err := e.publish(dir, key, pg.Slug)
	if err != nil {
		return page.EncodedImage{}, err
	}
	if len(derivatives) == 0 {
		return page.EncodedImage{}, fmt.Errorf("no derivatives produced")
	}

	return page.EncodedImage{Ref: ref, CacheKey: key, Derivatives: derivatives}, nil
}

// regenerate rebuilds the cache directory from scratch for every target
// width.
func (e *Engine) regenerate(src, dir string) error {
	native, err := readNativeWidth(src)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	stem := stemOf(src)
	for _, width := range e.selectWidths(native) {
		dst := filepath.Join(dir, cacheFileName(stem, width, e.settings.Format))
		if err := encodeWidth(src, dst, width, e.settings.MaxHeight, e.settings.Format, e.settings.Quality); err != nil {
			return err
		}
	}
	return nil
}

// selectWidths picks the derivative widths: every configured width at or
// under the native width, and the native width itself when not already
// included. Non-responsive mode encodes the native width only.
func (e *Engine) selectWidths(native int) []int {
	if !e.settings.Responsive {
		return []int{native}
	}

	seen := make(map[int]bool)
	var targets []int
	for _, w := range e.settings.Widths {
		if w > 0 && w <= native && !seen[w] {
			seen[w] = true
			targets = append(targets, w)
		}
	}
	if !seen[native] {
		targets = append(targets, native)
	}
	sort.Ints(targets)
	return targets
}

// publish copies every cached derivative into the flat output images dir as
// {page-slug}_{cache-key}_{width}.{ext} and returns the derivative list,
// ascending by width. The copy is skipped when the destination is newer.
func (e *Engine) publish(cacheDir, key, pageSlug string) ([]page.Derivative, error) {
	outDir := filepath.Join(e.roots.Output, "images")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return nil, err
	}

	var derivatives []page.Derivative
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		width, ok := widthFromCacheFile(entry.Name())
		if !ok {
			continue
		}
		// The cache file's own extension wins so a format change cannot
		// mislabel still-valid cache content.
		outName := fmt.Sprintf("%s_%s_%d%s", pageSlug, key, width, filepath.Ext(entry.Name()))
		if err := copyIfNewer(filepath.Join(cacheDir, entry.Name()), filepath.Join(outDir, outName)); err != nil {
			return nil, err
		}
		derivatives = append(derivatives, page.Derivative{Width: width, URL: "/images/" + outName})
	}

	sort.Slice(derivatives, func(i, j int) bool { return derivatives[i].Width < derivatives[j].Width })
	return derivatives, nil
}
