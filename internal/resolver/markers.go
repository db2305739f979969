package resolver

import (
	"iter"
	"regexp"
	"slices"
	"strings"

	"github.com/razvandimescu/bookpeek/internal/content"
)

// markerPattern matches [picture:<id>:<label>] and [photo:<id>:<label>].
var markerPattern = regexp.MustCompile(`\[(picture|photo):([0-9]+):([^\]\n]*)\]`)

var headingPattern = regexp.MustCompile(`(?m)^#[ \t]+(.+?)[ \t]*\r?$`)

// Marker is one reference marker found in Markdown text. Start and End are
// byte offsets of the whole marker.
type Marker struct {
	Kind  content.FigureKind
	ID    string
	Label string
	Start int
	End   int
}

// Markers yields the reference markers of text in order. With no kinds every
// marker is yielded; otherwise only markers of the given kinds.
func Markers(text string, kinds ...content.FigureKind) iter.Seq[Marker] {
	return func(yield func(Marker) bool) {
		offset := 0
		for offset < len(text) {
			loc := markerPattern.FindStringSubmatchIndex(text[offset:])
			if loc == nil {
				return
			}
			kind, _ := content.ParseFigureKind(text[offset+loc[2] : offset+loc[3]])
			m := Marker{
				Kind:  kind,
				ID:    text[offset+loc[4] : offset+loc[5]],
				Label: strings.TrimSpace(text[offset+loc[6] : offset+loc[7]]),
				Start: offset + loc[0],
				End:   offset + loc[1],
			}
			offset = m.End
			if len(kinds) > 0 && !slices.Contains(kinds, m.Kind) {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

// Title returns the text of the first "# " heading line, or "" when there is
// none.
func Title(text string) string {
	m := headingPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
