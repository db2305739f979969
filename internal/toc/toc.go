// Package toc loads book tables of contents (toc/*.json) and exposes them as
// a tree of books, chapters, kind folders and document leaves.
package toc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/razvandimescu/bookpeek/internal/content"
)

// Sentinel errors for table-of-contents loading.
var (
	ErrMalformedBook = errors.New("malformed table of contents")
	ErrBookNotFound  = errors.New("book not found")
)

// Untitled replaces missing chapter and section titles.
const Untitled = "Ohne Titel"

// Section is one entry of a chapter, addressing a document by ident.
type Section struct {
	Ident string `json:"ident"`
	Title string `json:"title"`
}

// UnmarshalJSON replaces a missing or null title with Untitled. An empty
// title is kept.
func (s *Section) UnmarshalJSON(data []byte) error {
	var raw struct {
		Ident string  `json:"ident"`
		Title *string `json:"title"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Section{Ident: raw.Ident, Title: titleOrUntitled(raw.Title)}
	return nil
}

// Chapter is a titled group of sections.
type Chapter struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// UnmarshalJSON replaces a missing or null title with Untitled.
func (c *Chapter) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title    *string   `json:"title"`
		Sections []Section `json:"sections"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Chapter{Title: titleOrUntitled(raw.Title), Sections: raw.Sections}
	return nil
}

func titleOrUntitled(title *string) string {
	if title == nil {
		return Untitled
	}
	return *title
}

// Book is a parsed table-of-contents file.
type Book struct {
	Key      string    `json:"key"`
	Path     string    `json:"-"`
	Chapters []Chapter `json:"chapters"`
}

// BookKey derives the book key from a toc file name ("NEA.json" -> "NEA").
func BookKey(path string) string {
	base := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(base), ".json") {
		return base[:len(base)-len(".json")]
	}
	return base
}

// LoadBook reads and parses the toc file at path. Missing titles are replaced
// with Untitled; empty ones are kept.
func LoadBook(path string) (*Book, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- toc files are globbed below the repository root
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBookNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var book Book
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedBook, path, err)
	}
	book.Key = BookKey(path)
	book.Path = path
	return &book, nil
}

// ListBooks returns the toc files of repo sorted by book key with
// locale-aware collation. A missing toc directory yields no books.
func ListBooks(repo content.Repository) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(repo.TOCDir(), "*.json"))
	if err != nil {
		return nil, err
	}
	content.SortByTitle(paths, BookKey)
	return paths, nil
}

// FindBook returns the toc path for key.
func FindBook(repo content.Repository, key string) (string, error) {
	paths, err := ListBooks(repo)
	if err != nil {
		return "", err
	}
	for _, p := range paths {
		if BookKey(p) == key {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrBookNotFound, key)
}
