package main

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/adrg/frontmatter"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// newMarkdownRenderer creates a configured goldmark renderer
func newMarkdownRenderer() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)
}

// newSanitizer allows what the renderer produces: highlighted code classes,
// heading ids and GFM task list checkboxes.
func newSanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").OnElements("span", "code", "pre", "div", "a", "ul", "li")
	p.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("type", "checked", "disabled").OnElements("input")
	return p
}

// documentFrontMatter is the optional YAML header of a content document.
type documentFrontMatter struct {
	Title string `yaml:"title"`
}

// renderDocument converts a content document to sanitized HTML. A YAML front
// matter block is stripped; reference markers become links to the figure
// preview.
func (s *server) renderDocument(src []byte) (template.HTML, documentFrontMatter, error) {
	var meta documentFrontMatter
	body, err := frontmatter.Parse(bytes.NewReader(src), &meta)
	if err != nil {
		// not every leading "---" is front matter; render as written
		body = src
		meta = documentFrontMatter{}
	}

	linked := linkMarkers(string(body))

	var buf bytes.Buffer
	if err := s.md.Convert([]byte(linked), &buf); err != nil {
		return "", meta, fmt.Errorf("rendering markdown: %w", err)
	}
	return template.HTML(s.policy.SanitizeBytes(buf.Bytes())), meta, nil // #nosec G203 -- sanitized above
}
