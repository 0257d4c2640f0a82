// Package config loads and validates the site configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuilder/internal/errors"
)

// Config is the root site configuration.
type Config struct {
	Site      SiteConfig     `yaml:"site"`
	Paths     PathsConfig    `yaml:"paths"`
	Notes     NotesConfig    `yaml:"notes"`
	Build     BuildConfig    `yaml:"build"`
	Templates []TemplateRule `yaml:"templates"`
	Feeds     FeedsConfig    `yaml:"feeds"`
	Dev       DevConfig      `yaml:"dev"`
	Logging   LoggingConfig  `yaml:"logging"`
}

// SiteConfig holds site-wide metadata exposed to templates and feeds.
type SiteConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
	BaseURL     string `yaml:"base_url"`
	Language    string `yaml:"language"`
}

// PathsConfig holds the directory layout. Relative paths resolve against
// the working directory, so run sitebuilder from the site root.
type PathsConfig struct {
	Source    string `yaml:"source"`
	Static    string `yaml:"static"`
	Templates string `yaml:"templates"`
	Output    string `yaml:"output"`
	Cache     string `yaml:"cache"`
}

// NotesConfig configures the per-page plugin pipeline.
type NotesConfig struct {
	Plugins     []PluginConfig `yaml:"plugins"`
	Concurrency int            `yaml:"concurrency"`
}

// BuildConfig configures the cross-page build plugins and failure policy.
type BuildConfig struct {
	Plugins     []PluginConfig `yaml:"plugins"`
	FailFast    bool           `yaml:"fail_fast"`
	CleanOutput bool           `yaml:"clean_output"`
}

// PluginConfig is the immutable per-plugin record: ordering constraints plus
// plugin-specific settings decoded by the plugin itself.
type PluginConfig struct {
	Name     string         `yaml:"name"`
	Enabled  *bool          `yaml:"enabled"`
	After    []string       `yaml:"after"`
	Before   []string       `yaml:"before"`
	Settings map[string]any `yaml:"settings"`
}

// IsEnabled reports whether the plugin is enabled; omitted means enabled.
func (p PluginConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// TemplateRule maps pages to a template and URL pattern. Rules are evaluated
// in order; the first rule whose predicates all match a page wins.
type TemplateRule struct {
	Name       string   `yaml:"name"`
	File       string   `yaml:"file"`
	Predicates []string `yaml:"predicates"`
	URLPattern string   `yaml:"url_pattern"`
}

// FeedsConfig controls generated feed documents.
type FeedsConfig struct {
	RSS     RSSConfig     `yaml:"rss"`
	Sitemap SitemapConfig `yaml:"sitemap"`
}

// RSSConfig controls the RSS 2.0 feed.
type RSSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Limit   int    `yaml:"limit"`
}

// SitemapConfig controls sitemap.xml generation.
type SitemapConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DevConfig configures the development server (serve command).
type DevConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	QuietWindow     string `yaml:"quiet_window"`
	MaxDelay        string `yaml:"max_delay"`
	RebuildInterval string `yaml:"rebuild_interval"`
	Metrics         bool   `yaml:"metrics"`
	BuildLog        string `yaml:"build_log"`
}

// QuietWindowDuration returns the parsed quiet window (defaulted by Load).
func (d DevConfig) QuietWindowDuration() time.Duration {
	return parseDurationOr(d.QuietWindow, 500*time.Millisecond)
}

// MaxDelayDuration returns the parsed debounce max delay (defaulted by Load).
func (d DevConfig) MaxDelayDuration() time.Duration {
	return parseDurationOr(d.MaxDelay, 3*time.Second)
}

// RebuildIntervalDuration returns the scheduled rebuild interval; zero means
// scheduled rebuilds are disabled.
func (d DevConfig) RebuildIntervalDuration() time.Duration {
	return parseDurationOr(d.RebuildInterval, 0)
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads, expands, defaults, and validates a configuration file.
func Load(configPath string) (*Config, error) {
	// Pick up .env/.env.local when present; absence is not an error.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.ConfigErrorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes configuration bytes, expands environment variables, applies
// defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "configuration validation failed")
	}

	return &cfg, nil
}
