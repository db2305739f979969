package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/razvandimescu/bookpeek/internal/content"
	"github.com/razvandimescu/bookpeek/internal/resolver"
)

// documentLink is a reference marker resolved to the figure it points at.
type documentLink struct {
	Kind   content.FigureKind `json:"kind"`
	ID     string             `json:"id"`
	Label  string             `json:"label"`
	Target string             `json:"target"`
	Asset  string             `json:"asset"`
	Exists bool               `json:"exists"`
	Start  int                `json:"start"`
	End    int                `json:"end"`
}

// figureURL is the preview URL of a figure file name.
func figureURL(kind content.FigureKind, name string) string {
	return "/figure/" + kind.Dir() + "/" + url.PathEscape(name)
}

// assetURL is the raw asset URL of a figure file name.
func assetURL(kind content.FigureKind, name string) string {
	return "/asset/" + kind.Dir() + "/" + url.PathEscape(name)
}

func markerFileName(m resolver.Marker) string {
	return m.ID + m.Kind.Ext()
}

// documentLinks lists every reference marker of text with its target figure.
func documentLinks(repo content.Repository, text string) []documentLink {
	var links []documentLink
	for m := range resolver.Markers(text) {
		name := markerFileName(m)
		link := documentLink{
			Kind:   m.Kind,
			ID:     m.ID,
			Label:  m.Label,
			Target: figureURL(m.Kind, name),
			Start:  m.Start,
			End:    m.End,
		}
		if asset, err := repo.FigurePath(m.Kind, name); err == nil {
			link.Asset = asset
			_, statErr := os.Stat(asset)
			link.Exists = statErr == nil
		}
		links = append(links, link)
	}
	return links
}

// linkMarkers rewrites every reference marker into a Markdown link to the
// figure preview, keeping the label as link text.
func linkMarkers(text string) string {
	var b strings.Builder
	last := 0
	for m := range resolver.Markers(text) {
		b.WriteString(text[last:m.Start])
		label := m.Label
		if label == "" {
			label = fmt.Sprintf("%s %s", m.Kind.Marker(), m.ID)
		}
		fmt.Fprintf(&b, "[%s](%s)", escapeLinkText(label), figureURL(m.Kind, markerFileName(m)))
		last = m.End
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

var linkTextEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`)

func escapeLinkText(s string) string {
	return linkTextEscaper.Replace(s)
}
