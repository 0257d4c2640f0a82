package page

import "strings"

// Status is the publication state of a page.
type Status string

const (
	StatusPublish Status = "publish"
	StatusDraft   Status = "draft"
	StatusScratch Status = "scratch"
)

// ParseStatus folds a raw frontmatter status value. The second return value
// is false when the input was not a recognized status (callers warn and fall
// back to scratch). An empty input is scratch without a warning.
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return StatusScratch, true
	case "publish", "published":
		return StatusPublish, true
	case "draft":
		return StatusDraft, true
	case "scratch":
		return StatusScratch, true
	default:
		return StatusScratch, false
	}
}

// Renderable reports whether pages with this status produce output files.
// Scratch pages run through the pipeline but are never written.
func (s Status) Renderable() bool {
	return s == StatusPublish || s == StatusDraft
}
