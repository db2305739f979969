package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/razvandimescu/bookpeek/internal/content"
)

// DocumentHit is a Markdown document embedding a figure.
type DocumentHit struct {
	Title      string   `json:"title"`
	Ident      string   `json:"ident"`
	Path       string   `json:"path"`
	MatchedIDs []string `json:"matchedIds"`
}

// MatchDocuments scans every *.md file in dir for markers of kind and reports
// the documents whose marker ids intersect candidates exactly. Results are
// sorted by title with locale-aware collation. Unreadable documents are
// skipped; a missing dir yields no hits.
func MatchDocuments(ctx context.Context, dir string, kind content.FigureKind, candidates []string) ([]DocumentHit, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	set := newCandidateSet(candidates)
	var hits []DocumentHit
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from a glob below the repository root
		if err != nil {
			continue
		}
		text := string(data)

		found := make(map[string]bool)
		for m := range Markers(text, kind) {
			if set[m.ID] {
				found[m.ID] = true
			}
		}
		if len(found) == 0 {
			continue
		}

		// report in candidate order so output does not depend on marker order
		var matched []string
		for _, c := range candidates {
			if found[c] {
				matched = append(matched, c)
				delete(found, c)
			}
		}

		title := Title(text)
		if title == "" {
			title = filepath.Base(path)
		}
		hits = append(hits, DocumentHit{
			Title:      title,
			Ident:      content.Stem(path),
			Path:       path,
			MatchedIDs: matched,
		})
	}

	content.SortByTitle(hits, func(h DocumentHit) string { return h.Title })
	return hits, nil
}
