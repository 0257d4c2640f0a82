// Package snapshot archives external URLs referenced by notes into
// self-contained local copies, tracked by per-URL metadata so failed or
// oversized fetches are not retried forever.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"time"
)

// MaxSnapshotSize caps one archived document at 75 MB.
const MaxSnapshotSize int64 = 75 * 1024 * 1024

// MetadataFile and DocumentFile are the fixed names inside a snapshot dir.
const (
	MetadataFile = "metadata.json"
	DocumentFile = "index.html"
)

// Metadata records the outcome of snapshotting one URL. It persists as
// metadata.json next to the archived document.
type Metadata struct {
	CrawledDate time.Time `json:"crawled_date"`
	OriginalURL string    `json:"original_url"`
	Success     bool      `json:"success"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	TooLarge    bool      `json:"too_large,omitempty"`
}

// LinkAttributes returns the data attributes to stamp on anchors pointing at
// this URL. Only successful or permanently-oversized snapshots are
// advertised.
func (m Metadata) LinkAttributes() map[string]string {
	if !m.Success && !m.TooLarge {
		return nil
	}
	return map[string]string{
		"data-snapshot-date": m.CrawledDate.Format(time.RFC3339),
		"data-snapshot-url":  m.OriginalURL,
	}
}

// LoadMetadata reads metadata.json from disk.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the metadata as indented JSON.
func (m Metadata) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// URLID derives the stable snapshot directory name for a URL: the first 16
// hex characters of its SHA-256.
func URLID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:16]
}
