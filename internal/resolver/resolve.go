package resolver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/razvandimescu/bookpeek/internal/content"
)

// ErrNotFigure is returned by Resolve for paths without a figure extension.
var ErrNotFigure = errors.New("not a figure asset")

// Report is everything the figure preview shows about one asset.
type Report struct {
	Asset      string             `json:"asset"`
	Name       string             `json:"name"`
	Kind       content.FigureKind `json:"kind"`
	Candidates []string           `json:"candidates"`
	AltText    string             `json:"altText"`
	TeX        string             `json:"tex,omitempty"`
	HasTeX     bool               `json:"hasTex"`

	Metadata []MetadataHit `json:"metadata"`
	// MetadataErr is set when the index could not be loaded; Metadata is
	// then empty and the preview shows "not available".
	MetadataErr error `json:"-"`

	Sections []DocumentHit `json:"sections"`
	Slides   []DocumentHit `json:"slides"`
}

// MetadataAvailable reports whether the metadata index was loaded.
func (r *Report) MetadataAvailable() bool {
	return r.MetadataErr == nil
}

// Resolve builds the Report for the figure at assetPath. The metadata match
// and the two document scopes run concurrently; each scope reads its files one
// at a time.
func Resolve(ctx context.Context, repo content.Repository, assetPath string) (*Report, error) {
	kind, ok := content.FigureFromPath(assetPath)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFigure, assetPath)
	}

	name := filepath.Base(assetPath)
	report := &Report{
		Asset:      assetPath,
		Name:       name,
		Kind:       kind,
		Candidates: Candidates(name),
		AltText:    content.AltText(assetPath),
	}
	if kind == content.Drawing {
		report.TeX, report.HasTeX = content.TeXSource(assetPath)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		idx, err := LoadIndex(repo.MetadataPath())
		if err != nil {
			report.MetadataErr = err
			return nil
		}
		report.Metadata = MatchMetadata(idx, report.Candidates)
		return nil
	})
	g.Go(func() error {
		hits, err := MatchDocuments(gctx, repo.DocumentDir(content.KindSection), kind, report.Candidates)
		report.Sections = hits
		return err
	})
	g.Go(func() error {
		hits, err := MatchDocuments(gctx, repo.DocumentDir(content.KindSlide), kind, report.Candidates)
		report.Slides = hits
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}
