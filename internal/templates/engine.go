// Package templates renders pages into HTML documents. Every *.html file
// under the templates directory is parsed into one html/template set;
// pages select a template by filename, with default.html as the fallback.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

// Site is the site-wide metadata block exposed to templates.
type Site struct {
	Title       string
	Description string
	Author      string
	BaseURL     string
	Language    string
}

// Build identifies the build that produced a document.
type Build struct {
	ID      string
	Time    time.Time
	Version string
}

// Data is the root object every template executes against.
type Data struct {
	Site  Site
	Page  *page.Context
	Notes *page.Accessor
	Build Build
}

// Engine holds the parsed template set for one build. The set is parsed
// once; a template change on disk requires a new Engine.
type Engine struct {
	set    *template.Template
	logger *slog.Logger
}

// NewEngine discovers and parses every *.html file under dir. Template
// names are paths relative to dir, slash-normalized, so both "post.html"
// and "partials/head.html" are addressable.
func NewEngine(dir string, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	files, err := discoverTemplates(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Newf(errors.CategoryTemplate, errors.SeverityFatal, "no templates found under %s", dir)
	}

	set := template.New("").Funcs(builtinFuncs()).Option("missingkey=error")
	for _, file := range files {
		raw, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(file)))
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", file, err)
		}
		if _, err := set.New(file).Parse(string(raw)); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", file, err)
		}
	}

	logger.Debug("templates loaded", "dir", dir, "count", len(files))
	return &Engine{set: set, logger: logger}, nil
}

// discoverTemplates walks dir and returns the slash-normalized relative
// paths of every .html file.
func discoverTemplates(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != ".html" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan templates under %s: %w", dir, err)
	}
	return files, nil
}

// Has reports whether a template with the given name was parsed.
func (e *Engine) Has(name string) bool {
	return e.set.Lookup(name) != nil
}

// Render executes the page's template over data. An unknown template name
// falls back to default.html with a warning; missing both is an error.
func (e *Engine) Render(data Data) (string, error) {
	name := data.Page.Template
	if name == "" {
		name = page.DefaultTemplate
	}

	tpl := e.set.Lookup(name)
	if tpl == nil && name != page.DefaultTemplate {
		e.logger.Warn("template not found, using default",
			"template", name, "page", data.Page.RelativePath)
		tpl = e.set.Lookup(page.DefaultTemplate)
	}
	if tpl == nil {
		return "", errors.Newf(errors.CategoryTemplate, errors.SeverityError,
			"template %q not found and no %s fallback", name, page.DefaultTemplate)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s with template %s: %w", data.Page.RelativePath, tpl.Name(), err)
	}
	return buf.String(), nil
}
