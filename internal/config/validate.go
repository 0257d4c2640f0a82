package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"git.home.luguber.info/inful/sitebuilder/internal/errors"
)

// Validate validates the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if err := c.Paths.Validate(); err != nil {
		return err
	}
	if err := c.Notes.Validate(); err != nil {
		return err
	}
	if err := c.Build.Validate(); err != nil {
		return err
	}
	for i, rule := range c.Templates {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("templates[%d]: %w", i, err)
		}
	}
	return c.Dev.Validate()
}

// Validate validates the path layout.
func (c *PathsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Source, validation.Required),
		validation.Field(&c.Templates, validation.Required),
		validation.Field(&c.Output, validation.Required),
		validation.Field(&c.Cache, validation.Required),
	)
}

// Validate validates the note pipeline configuration.
func (c *NotesConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(256)),
	); err != nil {
		return err
	}
	return validatePluginList("notes", c.Plugins)
}

// Validate validates the build plugin configuration.
func (c *BuildConfig) Validate() error {
	return validatePluginList("build", c.Plugins)
}

func validatePluginList(section string, plugins []PluginConfig) error {
	seen := make(map[string]bool, len(plugins))
	for _, p := range plugins {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%s: plugin with empty name", section)
		}
		if seen[p.Name] {
			return fmt.Errorf("%s: duplicate plugin %q", section, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Validate validates a template rule.
func (r *TemplateRule) Validate() error {
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.File, validation.Required),
	); err != nil {
		return err
	}
	if r.URLPattern != "" && !strings.Contains(r.URLPattern, "{slug}") {
		return errors.ValidationError(fmt.Sprintf("template %q: url_pattern must contain {slug}", r.Name))
	}
	return nil
}

// Validate validates the dev server configuration.
func (c *DevConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	); err != nil {
		return err
	}
	for name, raw := range map[string]string{
		"quiet_window":     c.QuietWindow,
		"max_delay":        c.MaxDelay,
		"rebuild_interval": c.RebuildInterval,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("dev.%s: invalid duration %q", name, raw)
		}
	}
	return nil
}

// Address returns the dev server listen address.
func (c DevConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
