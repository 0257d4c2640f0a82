package page

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// PhotoKind discriminates the two frontmatter forms of a featured photo.
type PhotoKind int

const (
	// PhotoPath is the bare-string form: just a path.
	PhotoPath PhotoKind = iota
	// PhotoPayload is the mapping form with path plus presentation fields.
	PhotoPayload
)

// FeaturedPhoto is a tagged variant resolved at parse time: a frontmatter
// entry is either a bare string path or a mapping carrying path, alt, and
// caption. URL is filled in by the image encoding plugin with the
// largest-width derivative; it stays empty when the source never resolved.
type FeaturedPhoto struct {
	Kind    PhotoKind `yaml:"-"`
	Path    string    `yaml:"path"`
	Alt     string    `yaml:"alt"`
	Caption string    `yaml:"caption"`
	URL     string    `yaml:"-"`
}

// UnmarshalYAML resolves the union when the frontmatter is decoded.
func (p *FeaturedPhoto) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		p.Kind = PhotoPath
		p.Path = value.Value
		return nil
	case yaml.MappingNode:
		type payload struct {
			Path    string `yaml:"path"`
			Alt     string `yaml:"alt"`
			Caption string `yaml:"caption"`
		}
		var pl payload
		if err := value.Decode(&pl); err != nil {
			return err
		}
		if pl.Path == "" {
			return fmt.Errorf("featured photo mapping missing path (line %d)", value.Line)
		}
		p.Kind = PhotoPayload
		p.Path = pl.Path
		p.Alt = pl.Alt
		p.Caption = pl.Caption
		return nil
	default:
		return fmt.Errorf("featured photo must be a string or mapping (line %d)", value.Line)
	}
}
