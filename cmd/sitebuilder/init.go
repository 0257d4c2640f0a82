package main

import (
	"fmt"
	"os"
	"path/filepath"
)

const scaffoldConfig = `site:
  title: My Notes
  description: Notes published with sitebuilder
  base_url: https://example.com
  language: en

paths:
  source: notes
  static: static
  templates: templates
  output: output
  cache: .cache/images

notes:
  concurrency: 10
  # The default pipeline (frontmatter, footnotes, markdown, date) always
  # runs. Add entries here to enable more plugins or tune their settings.
  plugins: []
  #  - name: image_encoding
  #    after: [markdown]
  #    settings:
  #      quality: 82

build:
  clean_output: true

# Template rules map matching pages to a template file and URL pattern.
# The first rule whose predicates all match wins.
templates: []
#  - name: blog
#    file: post.html
#    predicates: [is_published]
#    url_pattern: /blog/{slug}/

feeds:
  rss:
    enabled: true
  sitemap:
    enabled: true

dev:
  host: 127.0.0.1
  port: 8000
`

const scaffoldTemplate = `<!DOCTYPE html>
<html lang="{{ .Site.Language }}">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{ if .Page.Title }}{{ .Page.Title }} - {{ end }}{{ .Site.Title }}</title>
  <link rel="stylesheet" href="/style.css">
</head>
<body>
  <header>
    <a href="/">{{ .Site.Title }}</a>
  </header>
  <main>
    {{ if .Page.Title }}<h1>{{ .Page.Title }}</h1>{{ end }}
    {{ .Page.Content | safeHTML }}
  </main>
  <footer>
    <p>Built {{ formatdate "2006-01-02" .Build.Time }}</p>
  </footer>
</body>
</html>
`

const scaffoldNote = `---
title: Welcome
status: publish
date: 2024-01-15
tags:
  - meta
---

# Welcome

This note was created by ` + "`sitebuilder init`" + `. Edit it, add more notes
next to it, and run ` + "`sitebuilder serve`" + ` to preview the site while you
write.

Notes link to each other by filename: [Welcome](welcome.md) turns into this
page's URL at build time. Only notes with ` + "`status: publish`" + ` or
` + "`status: draft`" + ` are written out; everything else stays private.
`

const scaffoldCSS = `body {
  max-width: 42rem;
  margin: 0 auto;
  padding: 1rem;
  font-family: system-ui, sans-serif;
  line-height: 1.6;
}

header a {
  font-weight: bold;
  text-decoration: none;
}
`

// runInit scaffolds a new site next to the config file: the config itself,
// a default template, a sample note, and a stylesheet.
func runInit(configPath string, force bool) error {
	root := filepath.Dir(configPath)

	files := []struct {
		path    string
		content string
	}{
		{configPath, scaffoldConfig},
		{filepath.Join(root, "templates", "default.html"), scaffoldTemplate},
		{filepath.Join(root, "notes", "welcome.md"), scaffoldNote},
		{filepath.Join(root, "static", "style.css"), scaffoldCSS},
	}

	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil && !force {
			fmt.Printf("skipping %s (already exists, use --force to overwrite)\n", f.path)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(f.path), err)
		}
		if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.path, err)
		}
		fmt.Printf("created %s\n", f.path)
	}

	fmt.Println("site initialized, run `sitebuilder serve` to get started")
	return nil
}
