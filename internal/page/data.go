package page

import (
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TagList decodes from either a YAML sequence or a comma-separated string.
type TagList []string

// UnmarshalYAML implements the two accepted tag shapes.
func (t *TagList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parts := strings.Split(value.Value, ",")
		out := make(TagList, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*t = out
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*t = list
	return nil
}

// FrontmatterData is the typed view of a page's YAML frontmatter. Fields
// carries the raw decoded mapping for template access to custom keys.
type FrontmatterData struct {
	Title          string          `yaml:"title"`
	Description    string          `yaml:"description"`
	Author         string          `yaml:"author"`
	Slug           string          `yaml:"slug"`
	Date           string          `yaml:"date"`
	Status         string          `yaml:"status"`
	Template       string          `yaml:"template"`
	Layout         string          `yaml:"layout"`
	Tags           TagList         `yaml:"tags"`
	FeaturedPhotos []FeaturedPhoto `yaml:"featured_photos"`

	Fields map[string]any `yaml:"-"`
}

// DefaultTemplate is the template filename used when frontmatter names none.
const DefaultTemplate = "default.html"

// DateData is the parsed-date sub-record populated by the date plugin.
type DateData struct {
	Raw       string
	Parsed    time.Time
	Formatted string
	ISO       string
}

// DateLayouts are the accepted frontmatter date formats, tried in order.
var DateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDate attempts each accepted layout in order.
func ParseDate(raw string) (DateData, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DateData{}, false
	}
	for _, layout := range DateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		return DateData{
			Raw:       raw,
			Parsed:    t,
			Formatted: t.Format("January 2, 2006"),
			ISO:       t.Format(time.RFC3339),
		}, true
	}
	return DateData{Raw: raw}, false
}

// GitData is populated by the gitinfo plugin from repository history.
type GitData struct {
	LastCommit   string
	LastModified time.Time
	Created      time.Time
}

// Derivative is one width-scaled encode of a source image.
type Derivative struct {
	Width int
	URL   string
}

// EncodedImage records the outcome of encoding one referenced image.
type EncodedImage struct {
	Ref         string
	CacheKey    string
	Derivatives []Derivative // ascending by width
}

// LargestURL returns the URL of the widest derivative, or "" when none exist.
func (e EncodedImage) LargestURL() string {
	if len(e.Derivatives) == 0 {
		return ""
	}
	return e.Derivatives[len(e.Derivatives)-1].URL
}

// ImageResults is the image-encoding sub-record.
type ImageResults struct {
	Images []EncodedImage
}
