package main

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
)

//go:embed theme/*
var themeFS embed.FS

// Page names; each has a theme/<name>.html defining "content".
const (
	pageHome    = "home"
	pageDoc     = "doc"
	pageFigure  = "figure"
	pageFigures = "figures"
	pageMessage = "message"
)

var pageNames = []string{pageHome, pageDoc, pageFigure, pageFigures, pageMessage}

// theme holds the stylesheet, script and parsed page templates.
type theme struct {
	css   string
	js    string
	pages map[string]*template.Template
}

func loadTheme() (*theme, error) {
	css, err := themeFS.ReadFile("theme/style.css")
	if err != nil {
		return nil, fmt.Errorf("loading style.css: %w", err)
	}
	js, err := themeFS.ReadFile("theme/app.js")
	if err != nil {
		return nil, fmt.Errorf("loading app.js: %w", err)
	}

	// class based highlighting needs the chroma rules next to the theme
	var chromaCSS bytes.Buffer
	if err := chromahtml.New(chromahtml.WithClasses(true)).WriteCSS(&chromaCSS, styles.Get("github")); err != nil {
		return nil, fmt.Errorf("writing highlight styles: %w", err)
	}

	t := &theme{
		css:   string(css) + "\n" + chromaCSS.String(),
		js:    string(js),
		pages: make(map[string]*template.Template, len(pageNames)),
	}
	for _, name := range pageNames {
		tmpl, err := template.New(name).ParseFS(themeFS, "theme/base.html", "theme/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		t.pages[name] = tmpl
	}
	return t, nil
}

// baseTemplateData contains common fields for all pages
type baseTemplateData struct {
	CSS      template.CSS
	JS       template.JS
	Title    string
	Subtitle string
	TreeHTML template.HTML
	PanelID  string
}

func (t *theme) base(title, subtitle string, treeHTML string) baseTemplateData {
	return baseTemplateData{
		CSS:      template.CSS(t.css), // #nosec G203 -- embedded asset
		JS:       template.JS(t.js),   // #nosec G203 -- embedded asset
		Title:    title,
		Subtitle: subtitle,
		TreeHTML: template.HTML(treeHTML), // #nosec G203 -- built with escaped values
	}
}

// isPartialRequest detects if the request is an AJAX/fetch request for partial content
func isPartialRequest(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

// render executes page into a buffer and writes it with status. Partial
// requests get only the "content" block.
func (t *theme) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) bool {
	tmpl, ok := t.pages[page]
	if !ok {
		log.Printf("Unknown page template: %s", page)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return false
	}
	name := "base"
	if isPartialRequest(r) {
		name = "content"
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("Template execution error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return false
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
	return true
}
