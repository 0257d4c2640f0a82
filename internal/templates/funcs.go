package templates

import (
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/sitebuilder/internal/slug"
)

// builtinFuncs is the function map every template gets. formatdate takes
// the layout first so it can be used as a pipeline stage.
func builtinFuncs() template.FuncMap {
	return template.FuncMap{
		"slugify": slug.Slugify,
		"lower":   strings.ToLower,
		"upper":   strings.ToUpper,
		"title": func(s string) string {
			return cases.Title(language.English).String(s)
		},
		"formatdate": func(layout string, t time.Time) string {
			return t.Format(layout)
		},
		// Page content is pipeline-produced markup; templates opt in to
		// embedding it unescaped.
		"safeHTML": func(s string) template.HTML {
			return template.HTML(s)
		},
	}
}
