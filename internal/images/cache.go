package images

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// cacheValid reports whether the cache directory can be reused: it must
// exist, hold at least one file, and every file must be strictly newer than
// the source image.
func cacheValid(dir string, srcMtime time.Time) bool {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return false
		}
		if !info.ModTime().After(srcMtime) {
			return false
		}
	}
	return true
}

// cacheFileName is {stem}-{width}.{format}.
func cacheFileName(stem string, width int, format string) string {
	return fmt.Sprintf("%s-%d.%s", stem, width, format)
}

// widthFromCacheFile parses the width back out of a cache filename.
func widthFromCacheFile(name string) (int, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return 0, false
	}
	width, err := strconv.Atoi(base[idx+1:])
	if err != nil || width <= 0 {
		return 0, false
	}
	return width, true
}

// copyIfNewer copies src over dst unless dst already exists and is newer
// than src, which makes repeated publishes idempotent.
func copyIfNewer(src, dst string) error {
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
