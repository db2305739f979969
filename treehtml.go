package main

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/url"

	"github.com/razvandimescu/bookpeek/internal/toc"
)

// treeEntry is a node with its expanded children, used for the sidebar and
// /api/toc.
type treeEntry struct {
	ID       string       `json:"id"`
	Label    string       `json:"label"`
	Kind     string       `json:"kind"`
	URL      string       `json:"url,omitempty"`
	Missing  bool         `json:"missing,omitempty"`
	Error    string       `json:"error,omitempty"`
	Children []*treeEntry `json:"children,omitempty"`
}

func nodeKind(n toc.Node) string {
	switch n.(type) {
	case *toc.BookNode:
		return "book"
	case *toc.ChapterNode:
		return "chapter"
	case *toc.FolderNode:
		return "folder"
	case *toc.LeafNode:
		return "leaf"
	}
	return "unknown"
}

func nodeURL(n toc.Node) string {
	if leaf, ok := n.(*toc.LeafNode); ok {
		return "/doc/" + string(leaf.Kind) + "/" + url.PathEscape(leaf.Ident)
	}
	return ""
}

func newTreeEntry(n toc.Node) *treeEntry {
	e := &treeEntry{
		ID:    n.ID(),
		Label: n.Label(),
		Kind:  nodeKind(n),
		URL:   nodeURL(n),
	}
	if leaf, ok := n.(*toc.LeafNode); ok {
		e.Missing = !leaf.Exists
	}
	return e
}

// expandTree walks the whole toc. A book that fails to load is reported on
// its entry and does not stop the walk.
func expandTree(tree toc.Tree) ([]*treeEntry, error) {
	books, err := tree.Children(nil)
	if err != nil {
		return nil, err
	}
	entries := make([]*treeEntry, 0, len(books))
	for _, b := range books {
		entry := newTreeEntry(b)
		expandEntry(tree, b, entry)
		entries = append(entries, entry)
	}
	return entries, nil
}

func expandEntry(tree toc.Tree, n toc.Node, entry *treeEntry) {
	if n.Leaf() {
		return
	}
	children, err := tree.Children(n)
	if err != nil {
		log.Printf("Warning: %s unavailable: %v", n.Label(), err)
		entry.Error = "unavailable"
		return
	}
	for _, c := range children {
		child := newTreeEntry(c)
		expandEntry(tree, c, child)
		entry.Children = append(entry.Children, child)
	}
}

// generateTreeHTML renders the sidebar tree. Books are expanded, deeper
// levels start collapsed.
func generateTreeHTML(tree toc.Tree) string {
	entries, err := expandTree(tree)
	if err != nil {
		log.Printf("Warning: cannot list books: %v", err)
		return `<div class="tree-error">Table of contents unavailable</div>`
	}
	if len(entries) == 0 {
		return `<div class="tree-empty">No books found in toc/</div>`
	}

	var buf bytes.Buffer
	for _, e := range entries {
		generateTreeHTMLRecursive(e, 0, &buf)
	}
	return buf.String()
}

func generateTreeHTMLRecursive(e *treeEntry, depth int, buf *bytes.Buffer) {
	buf.WriteString(`<div class="tree-item">`)

	if e.Kind == "leaf" {
		class := "tree-file " + e.Kind
		if e.Missing {
			class += " missing"
		}
		fmt.Fprintf(buf, `<div class="tree-node"><span class="%s"><a href="%s" title="%s">%s</a></span></div>`,
			class,
			template.HTMLEscapeString(e.URL),
			template.HTMLEscapeString(e.ID),
			template.HTMLEscapeString(e.Label))
		buf.WriteString(`</div>`)
		return
	}

	collapsed := depth >= 1
	fmt.Fprintf(buf, `<div class="tree-node"><span class="tree-directory %s" onclick="toggleDir(this)" data-node="%s">`,
		e.Kind, template.HTMLEscapeString(e.ID))
	if collapsed {
		buf.WriteString(`<span class="expand-icon">▶</span>`)
	} else {
		buf.WriteString(`<span class="expand-icon">▼</span>`)
	}
	fmt.Fprintf(buf, `<span class="dir-name">%s</span>`, template.HTMLEscapeString(e.Label))
	if e.Error != "" {
		fmt.Fprintf(buf, ` <span class="tree-error">(%s)</span>`, template.HTMLEscapeString(e.Error))
	}
	buf.WriteString(`</span></div>`)

	if len(e.Children) > 0 {
		if collapsed {
			buf.WriteString(`<div class="tree-children" style="display: none;">`)
		} else {
			buf.WriteString(`<div class="tree-children">`)
		}
		for _, c := range e.Children {
			generateTreeHTMLRecursive(c, depth+1, buf)
		}
		buf.WriteString(`</div>`)
	}

	buf.WriteString(`</div>`)
}
