package snapshot

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserFetcher archives URLs through headless Chrome so script-rendered
// pages capture their final DOM. Rod downloads a browser on first use unless
// ROD_BROWSER_BIN points at one.
type BrowserFetcher struct {
	mu      sync.Mutex
	browser *rod.Browser
	timeout time.Duration
	headful bool
}

// NewBrowserFetcher creates a fetcher; the browser launches lazily on the
// first Fetch.
func NewBrowserFetcher(timeout time.Duration, headful bool) *BrowserFetcher {
	if timeout <= 0 {
		timeout = 75 * time.Second
	}
	return &BrowserFetcher{timeout: timeout, headful: headful}
}

func (f *BrowserFetcher) ensureBrowser() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil {
		return nil
	}

	l := launcher.New()
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}
	// NoSandbox required for CI and containerized environments.
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}
	if f.headful {
		l = l.Headless(false)
	}

	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect browser: %w", err)
	}
	f.browser = browser
	return nil
}

// Close releases browser resources.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.browser = nil
	return err
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.ensureBrowser(); err != nil {
		return nil, err
	}

	page, err := f.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open page %s: %w", url, err)
	}
	defer page.Close()

	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("load %s: %w", url, err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", url, err)
	}
	if int64(len(html)) > MaxSnapshotSize {
		return nil, ErrTooLarge
	}
	return []byte(html), nil
}
