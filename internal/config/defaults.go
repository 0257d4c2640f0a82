package config

// Default plugin sets. User configuration overrides a default entry by name
// (replacing its settings and constraints in place) and appends unknown names
// in user order.
func defaultNotePlugins() []PluginConfig {
	return []PluginConfig{
		{Name: "frontmatter"},
		{Name: "footnotes", After: []string{"frontmatter"}},
		{Name: "markdown", After: []string{"footnotes"}},
		{Name: "date", After: []string{"frontmatter"}},
	}
}

func defaultBuildPlugins() []PluginConfig {
	return []PluginConfig{
		{Name: "link_resolution"},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Site.Language == "" {
		cfg.Site.Language = "en"
	}

	if cfg.Paths.Source == "" {
		cfg.Paths.Source = "notes"
	}
	if cfg.Paths.Static == "" {
		cfg.Paths.Static = "static"
	}
	if cfg.Paths.Templates == "" {
		cfg.Paths.Templates = "templates"
	}
	if cfg.Paths.Output == "" {
		cfg.Paths.Output = "output"
	}
	if cfg.Paths.Cache == "" {
		cfg.Paths.Cache = ".cache/images"
	}

	cfg.Notes.Plugins = MergePlugins(defaultNotePlugins(), cfg.Notes.Plugins)
	if cfg.Notes.Concurrency <= 0 {
		cfg.Notes.Concurrency = 10
	}
	cfg.Build.Plugins = MergePlugins(defaultBuildPlugins(), cfg.Build.Plugins)

	if cfg.Feeds.RSS.Path == "" {
		cfg.Feeds.RSS.Path = "rss.xml"
	}
	if cfg.Feeds.RSS.Limit <= 0 {
		cfg.Feeds.RSS.Limit = 20
	}
	if cfg.Feeds.Sitemap.Path == "" {
		cfg.Feeds.Sitemap.Path = "sitemap.xml"
	}

	if cfg.Dev.Host == "" {
		cfg.Dev.Host = "127.0.0.1"
	}
	if cfg.Dev.Port == 0 {
		cfg.Dev.Port = 8000
	}
	if cfg.Dev.QuietWindow == "" {
		cfg.Dev.QuietWindow = "500ms"
	}
	if cfg.Dev.MaxDelay == "" {
		cfg.Dev.MaxDelay = "3s"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
}

// MergePlugins overlays user plugin entries onto the defaults: an entry whose
// name matches a default replaces it in place, anything else is appended in
// user order.
func MergePlugins(defaults, user []PluginConfig) []PluginConfig {
	merged := make([]PluginConfig, len(defaults))
	copy(merged, defaults)

	index := make(map[string]int, len(merged))
	for i, p := range merged {
		index[p.Name] = i
	}

	for _, p := range user {
		if i, ok := index[p.Name]; ok {
			merged[i] = p
			continue
		}
		index[p.Name] = len(merged)
		merged = append(merged, p)
	}
	return merged
}
