package plugins

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
	"git.home.luguber.info/inful/sitebuilder/internal/retry"
	"git.home.luguber.info/inful/sitebuilder/internal/snapshot"
)

type snapshotSettings struct {
	SnapshotDir   string `yaml:"snapshot_dir"`
	MaxConcurrent int64  `yaml:"max_concurrent"`
	MaxAttempts   int    `yaml:"max_attempts"`
	Render        string `yaml:"render"` // http | browser
	Headful       bool   `yaml:"headful"`
	Production    bool   `yaml:"production"`
	FetchTimeout  string `yaml:"fetch_timeout"`
	Backoff       string `yaml:"backoff"`
	InitialDelay  string `yaml:"initial_delay"`
	MaxDelay      string `yaml:"max_delay"`
	MaxRetries    int    `yaml:"max_retries"`
}

func defaultSnapshotSettings() snapshotSettings {
	return snapshotSettings{
		MaxConcurrent: 10,
		MaxAttempts:   3,
		Render:        "http",
		MaxRetries:    -1, // -1 keeps the policy default
	}
}

// snapshotPlugin archives every external link in the page into the snapshot
// directory and stamps the anchors with data-snapshot-* attributes. Fetch
// failures are recorded per URL and never fail the page; in production mode
// only already-archived snapshots are served.
type snapshotPlugin struct {
	archiver   *snapshot.Archiver
	browser    *snapshot.BrowserFetcher
	outputRoot string
	logger     *slog.Logger
}

func newSnapshot(deps plugin.Deps, cfg config.PluginConfig) (plugin.NotePlugin, error) {
	settings := defaultSnapshotSettings()
	if err := decodeSettings(cfg.Settings, &settings); err != nil {
		return nil, errors.ConfigErrorf("snapshot settings: %v", err)
	}
	if settings.SnapshotDir == "" {
		return nil, errors.ConfigError("snapshot plugin requires snapshot_dir")
	}

	policy, err := snapshotPolicy(settings)
	if err != nil {
		return nil, err
	}

	timeout, err := optionalDuration(settings.FetchTimeout)
	if err != nil {
		return nil, errors.ConfigErrorf("snapshot fetch_timeout: %v", err)
	}

	p := &snapshotPlugin{
		outputRoot: deps.Config.Paths.Output,
		logger:     deps.Logger,
	}

	var fetcher snapshot.Fetcher
	switch settings.Render {
	case "http":
		fetcher = snapshot.NewHTTPFetcher(timeout)
	case "browser":
		p.browser = snapshot.NewBrowserFetcher(timeout, settings.Headful)
		fetcher = p.browser
	default:
		return nil, errors.ConfigErrorf("snapshot render must be http or browser, got %q", settings.Render)
	}

	p.archiver = snapshot.New(fetcher, snapshot.Options{
		Dir:           settings.SnapshotDir,
		MaxConcurrent: settings.MaxConcurrent,
		MaxAttempts:   settings.MaxAttempts,
		Production:    settings.Production,
		Policy:        policy,
	}, deps.Logger)

	return p, nil
}

func snapshotPolicy(settings snapshotSettings) (retry.Policy, error) {
	var mode retry.BackoffMode
	if settings.Backoff != "" {
		m, ok := retry.ParseMode(settings.Backoff)
		if !ok {
			return retry.Policy{}, errors.ConfigErrorf("unknown snapshot backoff mode %q", settings.Backoff)
		}
		mode = m
	}
	initial, err := optionalDuration(settings.InitialDelay)
	if err != nil {
		return retry.Policy{}, errors.ConfigErrorf("snapshot initial_delay: %v", err)
	}
	maxDelay, err := optionalDuration(settings.MaxDelay)
	if err != nil {
		return retry.Policy{}, errors.ConfigErrorf("snapshot max_delay: %v", err)
	}
	return retry.NewPolicy(mode, initial, maxDelay, settings.MaxRetries), nil
}

// optionalDuration parses a duration setting; empty means unset (zero).
func optionalDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func (p *snapshotPlugin) Name() string { return "snapshot" }

func (p *snapshotPlugin) Process(ctx context.Context, pg *page.Context) (*page.Context, error) {
	urls := snapshot.ExtractExternalURLs(pg.Content)
	if len(urls) == 0 {
		return pg, nil
	}

	if err := p.archiver.ArchiveAll(ctx, urls); err != nil {
		return nil, err
	}

	pg.Content = p.archiver.AnnotateLinks(pg.Content)

	if err := p.archiver.CopyToOutput(p.outputRoot); err != nil {
		p.logger.Warn("publish snapshots to output failed",
			"page", pg.RelativePath, "error", err)
	}
	return pg, nil
}

// Close shuts down the browser when render: browser was configured.
func (p *snapshotPlugin) Close() error {
	if p.browser != nil {
		return p.browser.Close()
	}
	return nil
}
