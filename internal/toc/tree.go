package toc

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/razvandimescu/bookpeek/internal/content"
)

// ErrBadNodeID is returned by ParseNodeID for ids it cannot decode.
var ErrBadNodeID = errors.New("invalid tree node id")

// Node is an element of the table-of-contents tree. The set of node kinds is
// closed: *BookNode, *ChapterNode, *FolderNode and *LeafNode.
type Node interface {
	// Label is the text shown for the node.
	Label() string
	// ID is a stable, URL-safe identifier accepted by ParseNodeID.
	ID() string
	// Leaf reports whether the node has no children.
	Leaf() bool
	node()
}

// BookNode is a toc file.
type BookNode struct {
	Key  string
	Path string
}

// ChapterNode is a chapter of a book, addressed by its position.
type ChapterNode struct {
	Book  string
	Index int
	Title string
}

// FolderNode groups the documents of one kind below a chapter.
type FolderNode struct {
	Book    string
	Chapter int
	Kind    content.Kind
}

// LeafNode is a single document.
type LeafNode struct {
	Title  string
	Ident  string
	Kind   content.Kind
	Path   string
	Exists bool
}

func (*BookNode) node()    {}
func (*ChapterNode) node() {}
func (*FolderNode) node()  {}
func (*LeafNode) node()    {}

func (n *BookNode) Label() string    { return n.Key }
func (n *ChapterNode) Label() string { return fmt.Sprintf("%d. %s", n.Index+1, n.Title) }
func (n *FolderNode) Label() string  { return n.Kind.Label() }
func (n *LeafNode) Label() string    { return n.Title }

func (*BookNode) Leaf() bool    { return false }
func (*ChapterNode) Leaf() bool { return false }
func (*FolderNode) Leaf() bool  { return false }
func (*LeafNode) Leaf() bool    { return true }

func (n *BookNode) ID() string {
	return "book/" + url.PathEscape(n.Key)
}

func (n *ChapterNode) ID() string {
	return fmt.Sprintf("chapter/%s/%d", url.PathEscape(n.Book), n.Index)
}

func (n *FolderNode) ID() string {
	return fmt.Sprintf("folder/%s/%d/%s", url.PathEscape(n.Book), n.Chapter, n.Kind)
}

func (n *LeafNode) ID() string {
	return fmt.Sprintf("leaf/%s/%s", n.Kind, url.PathEscape(n.Ident))
}

// Tree produces node children from the repository. Every call re-reads the
// toc files.
type Tree struct {
	Repo content.Repository
}

// Children returns the children of parent; a nil parent yields the books.
func (t Tree) Children(parent Node) ([]Node, error) {
	switch n := parent.(type) {
	case nil:
		return t.books()
	case *BookNode:
		return t.chapters(n.Key)
	case *ChapterNode:
		return []Node{
			&FolderNode{Book: n.Book, Chapter: n.Index, Kind: content.KindSlide},
			&FolderNode{Book: n.Book, Chapter: n.Index, Kind: content.KindSection},
		}, nil
	case *FolderNode:
		return t.leaves(n)
	case *LeafNode:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unexpected node type %T", ErrBadNodeID, parent)
}

func (t Tree) books() ([]Node, error) {
	paths, err := ListBooks(t.Repo)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(paths))
	for _, p := range paths {
		nodes = append(nodes, &BookNode{Key: BookKey(p), Path: p})
	}
	return nodes, nil
}

func (t Tree) loadBook(key string) (*Book, error) {
	path, err := FindBook(t.Repo, key)
	if err != nil {
		return nil, err
	}
	return LoadBook(path)
}

func (t Tree) chapters(key string) ([]Node, error) {
	book, err := t.loadBook(key)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(book.Chapters))
	for i, ch := range book.Chapters {
		nodes = append(nodes, &ChapterNode{Book: key, Index: i, Title: ch.Title})
	}
	return nodes, nil
}

func (t Tree) leaves(f *FolderNode) ([]Node, error) {
	book, err := t.loadBook(f.Book)
	if err != nil {
		return nil, err
	}
	if f.Chapter < 0 || f.Chapter >= len(book.Chapters) {
		return nil, nil
	}

	sections := book.Chapters[f.Chapter].Sections
	nodes := make([]Node, 0, len(sections))
	for _, s := range sections {
		leaf := &LeafNode{Title: s.Title, Ident: s.Ident, Kind: f.Kind}
		if path, err := t.Repo.DocumentPath(f.Kind, s.Ident); err == nil {
			leaf.Path = path
			leaf.Exists = fileExists(path)
		}
		nodes = append(nodes, leaf)
	}
	return nodes, nil
}

// ParseNodeID decodes an id produced by Node.ID. Only identity fields are
// restored; labels are filled in by Children.
func ParseNodeID(id string) (Node, error) {
	parts := strings.Split(id, "/")
	for i, p := range parts {
		unescaped, err := url.PathUnescape(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadNodeID, id)
		}
		parts[i] = unescaped
	}

	bad := fmt.Errorf("%w: %q", ErrBadNodeID, id)
	switch {
	case len(parts) == 2 && parts[0] == "book" && parts[1] != "":
		return &BookNode{Key: parts[1]}, nil
	case len(parts) == 3 && parts[0] == "chapter":
		idx, err := strconv.Atoi(parts[2])
		if err != nil || idx < 0 {
			return nil, bad
		}
		return &ChapterNode{Book: parts[1], Index: idx}, nil
	case len(parts) == 4 && parts[0] == "folder":
		idx, err := strconv.Atoi(parts[2])
		if err != nil || idx < 0 {
			return nil, bad
		}
		kind, err := content.ParseKind(parts[3])
		if err != nil {
			return nil, bad
		}
		return &FolderNode{Book: parts[1], Chapter: idx, Kind: kind}, nil
	case len(parts) == 3 && parts[0] == "leaf":
		kind, err := content.ParseKind(parts[1])
		if err != nil {
			return nil, bad
		}
		return &LeafNode{Kind: kind, Ident: parts[2]}, nil
	}
	return nil, bad
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
