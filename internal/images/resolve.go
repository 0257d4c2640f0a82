package images

import (
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/slug"
)

// resolveSource locates a referenced image on disk. Candidates are tried
// relative to the page's own source directory, then the site source root,
// then the static dir; the first existing file wins. The returned root is
// whichever base resolved the file and anchors the cache key.
func (e *Engine) resolveSource(ref, pageDir string) (srcPath, root string, ok bool) {
	cleaned := strings.TrimPrefix(ref, "./")
	cleaned = strings.TrimPrefix(cleaned, "/")

	candidates := []struct{ dir, rel string }{
		{pageDir, ref},
		{e.roots.Source, cleaned},
		{e.roots.Static, cleaned},
	}
	for _, c := range candidates {
		if c.dir == "" {
			continue
		}
		p := filepath.Join(c.dir, c.rel)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, c.dir, true
		}
	}
	return "", "", false
}

// cacheKey derives the cache directory name: the path relative to the
// resolving root, extension stripped, each segment slugified independently,
// joined with underscores. Distinct sources can collide after slugification;
// the collision is accepted, not guarded.
func cacheKey(srcPath, root string) string {
	rel, err := filepath.Rel(root, srcPath)
	if err != nil {
		rel = filepath.Base(srcPath)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))

	segments := strings.Split(filepath.ToSlash(rel), "/")
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if s := slug.Slugify(seg); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "_")
}

// stemOf returns the slugified source basename used in cache filenames.
func stemOf(srcPath string) string {
	base := filepath.Base(srcPath)
	return slug.Slugify(strings.TrimSuffix(base, filepath.Ext(base)))
}
