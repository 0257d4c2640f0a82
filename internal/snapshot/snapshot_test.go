package snapshot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/retry"
)

// stubFetcher scripts per-URL outcomes and records call counts.
type stubFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error // error per URL; nil means success
	body  []byte
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{calls: make(map[string]int), fail: make(map[string]error), body: []byte("<html>archived</html>")}
}

func (f *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if err := f.fail[url]; err != nil {
		return nil, err
	}
	return f.body, nil
}

func (f *stubFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func fastPolicy() retry.Policy {
	return retry.NewPolicy(retry.BackoffFixed, time.Millisecond, time.Millisecond, 2)
}

func newTestArchiver(t *testing.T, fetcher Fetcher, opts Options) *Archiver {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	if opts.Policy == (retry.Policy{}) {
		opts.Policy = fastPolicy()
	}
	return New(fetcher, opts, nil)
}

func TestURLID_StableSixteenHex(t *testing.T) {
	id := URLID("https://example.com/post")
	assert.Len(t, id, 16)
	assert.Equal(t, id, URLID("https://example.com/post"))
	assert.NotEqual(t, id, URLID("https://example.com/other"))
}

func TestMetadata_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, MetadataFile)
	meta := Metadata{
		CrawledDate: time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC),
		OriginalURL: "https://example.com",
		Success:     true,
		Attempts:    2,
	}
	require.NoError(t, meta.Save(path))

	got, err := LoadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, meta.OriginalURL, got.OriginalURL)
	assert.True(t, got.Success)
	assert.Equal(t, 2, got.Attempts)
	assert.True(t, got.CrawledDate.Equal(meta.CrawledDate))
}

func TestMetadata_LinkAttributes(t *testing.T) {
	when := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	ok := Metadata{CrawledDate: when, OriginalURL: "https://example.com", Success: true}
	attrs := ok.LinkAttributes()
	assert.Equal(t, "2025-02-03T04:05:06Z", attrs["data-snapshot-date"])
	assert.Equal(t, "https://example.com", attrs["data-snapshot-url"])

	oversized := Metadata{CrawledDate: when, OriginalURL: "https://example.com", TooLarge: true}
	assert.NotEmpty(t, oversized.LinkAttributes())

	failed := Metadata{CrawledDate: when, OriginalURL: "https://example.com"}
	assert.Nil(t, failed.LinkAttributes())
}

func TestArchiveAll_WritesDocumentAndMetadata(t *testing.T) {
	fetcher := newStubFetcher()
	a := newTestArchiver(t, fetcher, Options{})
	url := "https://example.com/article"

	require.NoError(t, a.ArchiveAll(context.Background(), []string{url}))

	id := URLID(url)
	doc, err := os.ReadFile(filepath.Join(a.opts.Dir, id, DocumentFile))
	require.NoError(t, err)
	assert.Equal(t, "<html>archived</html>", string(doc))

	meta, err := LoadMetadata(filepath.Join(a.opts.Dir, id, MetadataFile))
	require.NoError(t, err)
	assert.True(t, meta.Success)
	assert.Equal(t, 1, meta.Attempts)
	assert.Equal(t, url, meta.OriginalURL)
}

func TestArchiveAll_SuccessfulSnapshotNotRefetched(t *testing.T) {
	fetcher := newStubFetcher()
	a := newTestArchiver(t, fetcher, Options{})
	url := "https://example.com/article"

	require.NoError(t, a.ArchiveAll(context.Background(), []string{url}))
	require.NoError(t, a.ArchiveAll(context.Background(), []string{url}))
	assert.Equal(t, 1, fetcher.callCount(url))

	// A fresh archiver over the same dir reads metadata from disk.
	b := New(fetcher, Options{Dir: a.opts.Dir, Policy: fastPolicy()}, nil)
	require.NoError(t, b.ArchiveAll(context.Background(), []string{url}))
	assert.Equal(t, 1, fetcher.callCount(url))
}

func TestArchiveAll_RetriesThenRecordsFailure(t *testing.T) {
	fetcher := newStubFetcher()
	url := "https://example.com/flaky"
	fetcher.fail[url] = errors.New("connection refused")

	a := newTestArchiver(t, fetcher, Options{MaxAttempts: 5})
	require.NoError(t, a.ArchiveAll(context.Background(), []string{url}))

	// fastPolicy allows 2 retries after the first try.
	assert.Equal(t, 3, fetcher.callCount(url))

	meta := a.Lookup(url)
	require.NotNil(t, meta)
	assert.False(t, meta.Success)
	assert.Equal(t, 3, meta.Attempts)
	assert.Contains(t, meta.LastError, "connection refused")
}

func TestArchiveAll_AttemptCapStopsRetryingAcrossRuns(t *testing.T) {
	fetcher := newStubFetcher()
	url := "https://example.com/dead"
	fetcher.fail[url] = errors.New("boom")

	a := newTestArchiver(t, fetcher, Options{MaxAttempts: 3})
	require.NoError(t, a.ArchiveAll(context.Background(), []string{url}))
	require.Equal(t, 3, fetcher.callCount(url))

	// Attempts exhausted; later runs skip entirely.
	b := New(fetcher, Options{Dir: a.opts.Dir, MaxAttempts: 3, Policy: fastPolicy()}, nil)
	require.NoError(t, b.ArchiveAll(context.Background(), []string{url}))
	assert.Equal(t, 3, fetcher.callCount(url))
}

func TestArchiveAll_TooLargeIsPermanent(t *testing.T) {
	fetcher := newStubFetcher()
	url := "https://example.com/huge"
	fetcher.fail[url] = ErrTooLarge

	a := newTestArchiver(t, fetcher, Options{})
	require.NoError(t, a.ArchiveAll(context.Background(), []string{url}))
	assert.Equal(t, 1, fetcher.callCount(url), "size errors must not retry")

	meta := a.Lookup(url)
	require.NotNil(t, meta)
	assert.True(t, meta.TooLarge)
	assert.False(t, meta.Success)

	require.NoError(t, a.ArchiveAll(context.Background(), []string{url}))
	assert.Equal(t, 1, fetcher.callCount(url))
}

func TestArchiveAll_ProductionMode_NeverCrawls(t *testing.T) {
	fetcher := newStubFetcher()
	a := newTestArchiver(t, fetcher, Options{Production: true})

	require.NoError(t, a.ArchiveAll(context.Background(), []string{"https://example.com/new"}))
	assert.Equal(t, 0, fetcher.callCount("https://example.com/new"))
}

func TestHTTPFetcher_SizeCapAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			fmt.Fprint(w, "<html>hello</html>")
		case "/missing":
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5 * time.Second)

	data, err := f.Fetch(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, "<html>hello</html>", string(data))

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	require.ErrorContains(t, err, "404")
}

func TestExtractExternalURLs(t *testing.T) {
	content := `<p><a href="https://example.com/a">a</a>
<a href="/local/page">local</a>
<a href="#anchor">anchor</a>
<a href="http://example.org/b">b</a>
<a href="https://example.com/a">dup</a></p>`

	assert.Equal(t, []string{"https://example.com/a", "http://example.org/b"}, ExtractExternalURLs(content))
}

func TestAnnotateLinks_StampsSnapshotAttributes(t *testing.T) {
	fetcher := newStubFetcher()
	a := newTestArchiver(t, fetcher, Options{})
	url := "https://example.com/article"
	require.NoError(t, a.ArchiveAll(context.Background(), []string{url}))

	content := `<p><a class="ref" href="https://example.com/article">read</a> and <a href="/local">here</a></p>`
	out := a.AnnotateLinks(content)

	assert.Contains(t, out, fmt.Sprintf("data-snapshot-id=%q", URLID(url)))
	assert.Contains(t, out, `data-snapshot-date=`)
	assert.Contains(t, out, fmt.Sprintf("data-snapshot-url=%q", url))
	assert.Contains(t, out, `class="ref"`)
	assert.Contains(t, out, `<a href="/local">`)
}

func TestAnnotateLinks_FailedSnapshotGetsIDOnly(t *testing.T) {
	fetcher := newStubFetcher()
	url := "https://example.com/broken"
	fetcher.fail[url] = errors.New("boom")

	a := newTestArchiver(t, fetcher, Options{})
	require.NoError(t, a.ArchiveAll(context.Background(), []string{url}))

	out := a.AnnotateLinks(fmt.Sprintf(`<a href="%s">x</a>`, url))
	assert.Contains(t, out, "data-snapshot-id=")
	assert.NotContains(t, out, "data-snapshot-date=")
}

func TestAnnotateLinks_UnknownURLUntouched(t *testing.T) {
	a := newTestArchiver(t, newStubFetcher(), Options{})
	in := `<a href="https://example.com/never-seen">x</a>`
	assert.Equal(t, in, a.AnnotateLinks(in))
}

func TestCopyToOutput_PublishesOnlySuccesses(t *testing.T) {
	fetcher := newStubFetcher()
	failURL := "https://example.com/fail"
	fetcher.fail[failURL] = errors.New("boom")

	a := newTestArchiver(t, fetcher, Options{})
	okURL := "https://example.com/ok"
	require.NoError(t, a.ArchiveAll(context.Background(), []string{okURL, failURL}))

	out := t.TempDir()
	require.NoError(t, a.CopyToOutput(out))

	okDir := filepath.Join(out, "snapshots", URLID(okURL))
	assert.FileExists(t, filepath.Join(okDir, DocumentFile))
	assert.FileExists(t, filepath.Join(okDir, MetadataFile))

	_, err := os.Stat(filepath.Join(out, "snapshots", URLID(failURL)))
	assert.True(t, os.IsNotExist(err))
}

func TestIsExternalURL(t *testing.T) {
	assert.True(t, IsExternalURL("https://example.com"))
	assert.True(t, IsExternalURL("http://example.com"))
	assert.True(t, IsExternalURL("www.example.com"))
	assert.False(t, IsExternalURL("/notes/page"))
	assert.False(t, IsExternalURL("#anchor"))
	assert.False(t, IsExternalURL("mailto:a@b.c"))
}
