// Package resolver finds the cross-references of a figure asset: question
// metadata records naming the figure, and Markdown documents embedding it
// through a reference marker.
//
// All operations read the current on-disk state and keep nothing between
// calls.
package resolver

import (
	"regexp"
	"strings"
)

var digitRun = regexp.MustCompile(`[0-9]+`)

// figureExts are stripped from a file name before deriving candidates.
var figureExts = []string{".svg", ".png"}

// Candidates derives the identifiers a figure file may be referenced by: the
// file stem, followed by every maximal run of decimal digits in the stem, in
// order of appearance and without duplicates.
//
// "q42.svg" yields ["q42", "42"]; "42.svg" yields ["42"].
func Candidates(filename string) []string {
	stem := figureStem(filename)
	out := []string{stem}
	seen := map[string]bool{stem: true}
	for _, run := range digitRun.FindAllString(stem, -1) {
		if seen[run] {
			continue
		}
		seen[run] = true
		out = append(out, run)
	}
	return out
}

func figureStem(filename string) string {
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	lower := strings.ToLower(base)
	for _, ext := range figureExts {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}

// candidateSet is a lookup view over a candidate slice.
type candidateSet map[string]bool

func newCandidateSet(candidates []string) candidateSet {
	set := make(candidateSet, len(candidates))
	for _, c := range candidates {
		set[c] = true
	}
	return set
}
