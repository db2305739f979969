// Package content describes the on-disk layout of a book content repository:
// tables of contents, Markdown documents (slides and sections) and figure
// assets (SVG drawings, PNG photos) with their sidecar files.
package content

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Sentinel errors for content lookups.
var (
	ErrUnknownKind    = errors.New("unknown content kind")
	ErrInvalidName    = errors.New("invalid file name")
	ErrDocumentAbsent = errors.New("document not found")
)

// NoAltText is reported when a figure has no usable sidecar description.
const NoAltText = "none"

// Kind distinguishes the two Markdown document folders.
type Kind string

const (
	KindSlide   Kind = "slide"
	KindSection Kind = "section"
)

// Kinds lists document kinds in lookup order (slides win over sections).
var Kinds = []Kind{KindSlide, KindSection}

// Dir returns the folder name below contents/ holding documents of this kind.
func (k Kind) Dir() string {
	return string(k) + "s"
}

// Label is the human readable folder label used in the tree.
func (k Kind) Label() string {
	switch k {
	case KindSlide:
		return "Slides"
	case KindSection:
		return "Sections"
	}
	return string(k)
}

// ParseKind accepts both the singular and the folder spelling ("slide", "slides").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "slide", "slides":
		return KindSlide, nil
	case "section", "sections":
		return KindSection, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// FigureKind distinguishes vector drawings from photos.
type FigureKind string

const (
	Drawing FigureKind = "drawing"
	Photo   FigureKind = "photo"
)

// FigureKinds lists every figure kind.
var FigureKinds = []FigureKind{Drawing, Photo}

// Dir returns the folder name below contents/.
func (f FigureKind) Dir() string {
	return string(f) + "s"
}

// Ext is the asset extension including the dot.
func (f FigureKind) Ext() string {
	if f == Drawing {
		return ".svg"
	}
	return ".png"
}

// Marker is the reference-marker keyword used in Markdown ("picture" or "photo").
func (f FigureKind) Marker() string {
	if f == Drawing {
		return "picture"
	}
	return "photo"
}

// ContentType is the MIME type served for assets of this kind.
func (f FigureKind) ContentType() string {
	if f == Drawing {
		return "image/svg+xml"
	}
	return "image/png"
}

// ParseFigureKind accepts "drawing", "drawings", "photo", "photos" and the
// marker keyword "picture".
func ParseFigureKind(s string) (FigureKind, error) {
	switch strings.ToLower(s) {
	case "drawing", "drawings", "picture":
		return Drawing, nil
	case "photo", "photos":
		return Photo, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Repository is a content repository rooted at Root.
type Repository struct {
	Root string
}

// New returns a Repository for root, made absolute when possible.
func New(root string) Repository {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return Repository{Root: root}
}

func (r Repository) TOCDir() string {
	return filepath.Join(r.Root, "toc")
}

func (r Repository) ContentsDir() string {
	return filepath.Join(r.Root, "contents")
}

// DocumentDir is the folder holding Markdown documents of kind k.
func (r Repository) DocumentDir(k Kind) string {
	return filepath.Join(r.ContentsDir(), k.Dir())
}

// FigureDir is the folder holding assets of kind f.
func (r Repository) FigureDir(f FigureKind) string {
	return filepath.Join(r.ContentsDir(), f.Dir())
}

// MetadataPath is the location of the question metadata index.
func (r Repository) MetadataPath() string {
	return filepath.Join(r.ContentsDir(), "questions", "metadata3b.json")
}

// DocumentPath returns contents/<kind>s/<ident>.md. The file may not exist.
func (r Repository) DocumentPath(k Kind, ident string) (string, error) {
	if err := validateName(ident); err != nil {
		return "", err
	}
	return filepath.Join(r.DocumentDir(k), ident+".md"), nil
}

// ResolveIdent finds the document for ident, trying slides before sections.
func (r Repository) ResolveIdent(ident string) (Kind, string, error) {
	for _, k := range Kinds {
		path, err := r.DocumentPath(k, ident)
		if err != nil {
			return "", "", err
		}
		if fileExists(path) {
			return k, path, nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrDocumentAbsent, ident)
}

// FigurePath returns the asset path for name, which must be a bare file name
// carrying the extension of kind f.
func (r Repository) FigurePath(f FigureKind, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if !strings.EqualFold(filepath.Ext(name), f.Ext()) {
		return "", fmt.Errorf("%w: %s is not a %s file", ErrInvalidName, name, f.Ext())
	}
	return filepath.Join(r.FigureDir(f), name), nil
}

// FigureFromPath reports which figure kind an asset path belongs to, based on
// its extension.
func FigureFromPath(path string) (FigureKind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".svg":
		return Drawing, true
	case ".png":
		return Photo, true
	}
	return "", false
}

// ListFigures returns asset file names of kind f in lexical order.
func (r Repository) ListFigures(f FigureKind) ([]string, error) {
	entries, err := os.ReadDir(r.FigureDir(f))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), f.Ext()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Stem strips the extension from a file name or path.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SidecarPath returns the sibling of assetPath with extension ext.
func SidecarPath(assetPath, ext string) string {
	return filepath.Join(filepath.Dir(assetPath), Stem(assetPath)+ext)
}

// AltText returns the trimmed contents of the .txt sidecar of assetPath, or
// NoAltText when the sidecar is missing, unreadable or blank.
func AltText(assetPath string) string {
	data, err := os.ReadFile(SidecarPath(assetPath, ".txt"))
	if err != nil {
		return NoAltText
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return NoAltText
	}
	return text
}

// TeXSource returns the .tex sidecar of a drawing. ok is false when absent.
func TeXSource(assetPath string) (src string, ok bool) {
	data, err := os.ReadFile(SidecarPath(assetPath, ".tex"))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: %q contains a path separator or null byte", ErrInvalidName, name)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
