// Package plugins contains the built-in note and build plugin
// implementations and their registration table.
//
// Each plugin decodes its own settings from the raw configuration mapping;
// the pipeline machinery in internal/plugin knows nothing about individual
// plugins beyond their declared capabilities.
package plugins

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuilder/internal/plugin"
)

// Register installs every built-in plugin factory. Called once at startup;
// a duplicate name is a programming bug and panics.
func Register(reg *plugin.Registry) {
	reg.MustRegisterNote("frontmatter", []plugin.Capability{plugin.CapLogger}, newFrontmatter)
	reg.MustRegisterNote("footnotes", nil, newFootnotes)
	reg.MustRegisterNote("markdown", nil, newMarkdown)
	reg.MustRegisterNote("date", []plugin.Capability{plugin.CapLogger}, newDate)
	reg.MustRegisterNote("screenshot", []plugin.Capability{plugin.CapLogger}, newScreenshot)
	reg.MustRegisterNote("snapshot", []plugin.Capability{plugin.CapSiteConfig, plugin.CapLogger}, newSnapshot)
	reg.MustRegisterNote("image_encoding", []plugin.Capability{plugin.CapSiteConfig, plugin.CapLogger, plugin.CapMetrics}, newImageEncoding)
	reg.MustRegisterNote("gitinfo", []plugin.Capability{plugin.CapSiteConfig, plugin.CapLogger}, newGitInfo)

	reg.MustRegisterBuild("link_resolution", []plugin.Capability{plugin.CapSiteConfig, plugin.CapLogger}, newLinkResolution)
	reg.MustRegisterBuild("tailwind", []plugin.Capability{plugin.CapSiteConfig, plugin.CapLogger}, newTailwind)
	reg.MustRegisterBuild("typescript", []plugin.Capability{plugin.CapSiteConfig, plugin.CapLogger}, newTypeScript)
}

// decodeSettings maps a plugin's raw settings block onto its typed settings
// struct through a YAML round-trip, so settings structs reuse the same tags
// and decoding rules as the rest of the configuration.
func decodeSettings(settings map[string]any, out any) error {
	if len(settings) == 0 {
		return nil
	}
	raw, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	return nil
}
