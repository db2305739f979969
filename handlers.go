package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/razvandimescu/bookpeek/internal/artifact"
	"github.com/razvandimescu/bookpeek/internal/content"
	"github.com/razvandimescu/bookpeek/internal/resolver"
	"github.com/razvandimescu/bookpeek/internal/toc"
)

// messageView is an inline error or notice.
type messageView struct {
	Class string
	Text  string
	Path  string
	Hint  string
}

type messagePage struct {
	baseTemplateData
	Message *messageView
}

type docView struct {
	HTMLURL  string
	LinksURL string
}

type docPage struct {
	baseTemplateData
	Content  template.HTML
	Document *docView
}

// hitView is a document reference shown on the figure page.
type hitView struct {
	Title   string
	URL     string
	Matched string
}

type figureView struct {
	Report       *resolver.Report
	AssetURL     string
	Version      int64
	MetadataPath string
	Sections     []hitView
	Slides       []hitView
}

type figurePage struct {
	baseTemplateData
	Figure *figureView
}

type galleryItem struct {
	Name string
	URL  string
}

type gallery struct {
	Label string
	Items []galleryItem
}

type figuresPage struct {
	baseTemplateData
	Galleries []gallery
}

// urlParam returns the unescaped chi URL parameter. chi matches against
// RawPath when the request has one and against the decoded Path otherwise.
func urlParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return raw
	}
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// relPath shows path relative to the repository root when possible.
func (s *server) relPath(path string) string {
	if rel, err := filepath.Rel(s.repo.Root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return path
}

// pageTree returns the sidebar HTML, skipped for partial requests.
func (s *server) pageTree(r *http.Request) string {
	if isPartialRequest(r) {
		return ""
	}
	return generateTreeHTML(s.tree)
}

func (s *server) renderMessage(w http.ResponseWriter, r *http.Request, status int, title string, msg messageView) {
	if msg.Class == "" {
		msg.Class = "error"
	}
	data := messagePage{
		baseTemplateData: s.theme.base(title, "", s.pageTree(r)),
		Message:          &msg,
	}
	s.theme.render(w, r, status, pageMessage, data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("Failed to write JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *server) serveHome(w http.ResponseWriter, r *http.Request) {
	books, err := toc.ListBooks(s.repo)
	if err != nil {
		log.Printf("Warning: cannot list books: %v", err)
	}
	subtitle := fmt.Sprintf("%s - %d book(s)", s.repo.Root, len(books))
	data := s.theme.base("Table of contents", subtitle, s.pageTree(r))
	s.theme.render(w, r, http.StatusOK, pageHome, data)
}

func (s *server) serveTreeHTML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write([]byte(generateTreeHTML(s.tree))); err != nil {
		log.Printf("Failed to write tree HTML response: %v", err)
	}
}

func (s *server) serveDocument(w http.ResponseWriter, r *http.Request) {
	kind, err := content.ParseKind(urlParam(r, "kind"))
	if err != nil {
		s.renderMessage(w, r, http.StatusBadRequest, "Unknown document kind", messageView{Text: err.Error()})
		return
	}
	ident := urlParam(r, "ident")
	path, err := s.repo.DocumentPath(kind, ident)
	if err != nil {
		s.renderMessage(w, r, http.StatusBadRequest, "Invalid document", messageView{Text: err.Error()})
		return
	}

	src, err := os.ReadFile(path) // #nosec G304 -- name validated by DocumentPath
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.renderMessage(w, r, http.StatusNotFound, "Document not found", messageView{
				Text: fmt.Sprintf("No %s with ident %q exists.", kind, ident),
				Path: path,
			})
			return
		}
		log.Printf("Error reading %s: %v", path, err)
		s.renderMessage(w, r, http.StatusInternalServerError, "Cannot read document", messageView{Text: err.Error(), Path: path})
		return
	}

	rendered, meta, err := s.renderDocument(src)
	if err != nil {
		log.Printf("Error rendering %s: %v", path, err)
		s.renderMessage(w, r, http.StatusInternalServerError, "Cannot render document", messageView{Text: err.Error(), Path: path})
		return
	}

	title := resolver.Title(string(src))
	if title == "" {
		title = meta.Title
	}
	if title == "" {
		title = filepath.Base(path)
	}

	data := docPage{
		baseTemplateData: s.theme.base(title, s.relPath(path), s.pageTree(r)),
		Content:          rendered,
		Document: &docView{
			HTMLURL:  "/html/" + url.PathEscape(ident),
			LinksURL: "/api/links/" + string(kind) + "/" + url.PathEscape(ident),
		},
	}
	s.theme.render(w, r, http.StatusOK, pageDoc, data)
}

// openIdent redirects to the document for ident, preferring slides.
func (s *server) openIdent(w http.ResponseWriter, r *http.Request) {
	ident := urlParam(r, "ident")
	kind, _, err := s.repo.ResolveIdent(ident)
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, content.ErrInvalidName) {
			status = http.StatusBadRequest
		}
		s.renderMessage(w, r, status, "Cannot open document", messageView{Text: err.Error()})
		return
	}
	http.Redirect(w, r, "/doc/"+string(kind)+"/"+url.PathEscape(ident), http.StatusFound)
}

// openRenderedHTML redirects to build/<book>_<ident>.html in the build
// repository. ?book= overrides the configured default book.
func (s *server) openRenderedHTML(w http.ResponseWriter, r *http.Request) {
	ident := urlParam(r, "ident")
	book := r.URL.Query().Get("book")
	if book == "" {
		book = s.cfg.DefaultBook
	}

	path, err := artifact.Locate(s.cfg.BuildRepo, book, ident)
	switch {
	case errors.Is(err, artifact.ErrMissingSetting):
		s.renderMessage(w, r, http.StatusPreconditionFailed, "Missing configuration", messageView{
			Text: err.Error(),
			Hint: "Set buildRepo and defaultBook in bookpeek.yaml, via BOOKPEEK_BUILD_REPO / BOOKPEEK_DEFAULT_BOOK, or with --build-repo / --book.",
		})
		return
	case errors.Is(err, artifact.ErrInvalidIdent):
		s.renderMessage(w, r, http.StatusBadRequest, "Invalid ident", messageView{Text: err.Error()})
		return
	case errors.Is(err, artifact.ErrNotFound):
		s.renderMessage(w, r, http.StatusNotFound, "Rendered HTML not found", messageView{
			Text: err.Error(),
			Path: artifact.Path(s.cfg.BuildRepo, book, ident),
			Hint: "Build the book first.",
		})
		return
	case err != nil:
		s.renderMessage(w, r, http.StatusInternalServerError, "Cannot open rendered HTML", messageView{Text: err.Error()})
		return
	}

	http.Redirect(w, r, "/build/"+url.PathEscape(filepath.Base(path)), http.StatusFound)
}

// figureAsset maps the {kind}/{name} route parameters to an asset path.
func (s *server) figureAsset(r *http.Request) (content.FigureKind, string, string, error) {
	kind, err := content.ParseFigureKind(urlParam(r, "kind"))
	if err != nil {
		return "", "", "", err
	}
	name := urlParam(r, "name")
	asset, err := s.repo.FigurePath(kind, name)
	if err != nil {
		return "", "", "", err
	}
	return kind, name, asset, nil
}

func (s *server) serveFigure(w http.ResponseWriter, r *http.Request) {
	kind, name, asset, err := s.figureAsset(r)
	if err != nil {
		s.renderMessage(w, r, http.StatusBadRequest, "Cannot preview figure", messageView{Text: err.Error()})
		return
	}
	if _, err := os.Stat(asset); err != nil {
		s.renderMessage(w, r, http.StatusNotFound, "Figure not found", messageView{
			Text: fmt.Sprintf("No %s named %s exists.", kind, name),
			Path: asset,
		})
		return
	}

	p, created := s.panels.open(kind, name, asset)
	if created {
		log.Printf("Opened figure panel %s for %s", p.ID, s.relPath(asset))
		// dropped unless a tab subscribes within the grace period
		s.scheduleDispose(p.ID)
	}

	report, err := resolver.Resolve(r.Context(), s.repo, asset)
	if err != nil {
		if r.Context().Err() != nil {
			// the tab went away; nobody reads the result
			return
		}
		log.Printf("Error resolving %s: %v", asset, err)
		s.renderMessage(w, r, http.StatusInternalServerError, "Cannot resolve references", messageView{Text: err.Error(), Path: asset})
		return
	}
	if report.MetadataErr != nil {
		log.Printf("Warning: %v", report.MetadataErr)
	}

	view := &figureView{
		Report:       report,
		AssetURL:     assetURL(kind, name),
		Version:      p.Version(),
		MetadataPath: s.relPath(s.repo.MetadataPath()),
		Sections:     s.hitViews(report.Sections, content.KindSection),
		Slides:       s.hitViews(report.Slides, content.KindSlide),
	}
	base := s.theme.base(name, s.relPath(asset), s.pageTree(r))
	base.PanelID = p.ID
	s.theme.render(w, r, http.StatusOK, pageFigure, figurePage{baseTemplateData: base, Figure: view})
}

func (s *server) hitViews(hits []resolver.DocumentHit, kind content.Kind) []hitView {
	views := make([]hitView, 0, len(hits))
	for _, h := range hits {
		views = append(views, hitView{
			Title:   h.Title,
			URL:     "/doc/" + string(kind) + "/" + url.PathEscape(h.Ident),
			Matched: strings.Join(h.MatchedIDs, ", "),
		})
	}
	return views
}

// serveAsset writes the raw figure. SVGs are sandboxed so embedded scripts
// cannot run on this origin.
func (s *server) serveAsset(w http.ResponseWriter, r *http.Request) {
	kind, name, asset, err := s.figureAsset(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f, err := os.Open(asset) // #nosec G304 -- name validated by FigurePath
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", kind.ContentType())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; img-src data:; sandbox")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *server) serveFigureIndex(w http.ResponseWriter, r *http.Request) {
	var galleries []gallery
	total := 0
	for _, kind := range content.FigureKinds {
		names, err := s.repo.ListFigures(kind)
		if err != nil {
			log.Printf("Warning: cannot list %s: %v", kind.Dir(), err)
		}
		g := gallery{Label: strings.ToUpper(kind.Dir()[:1]) + kind.Dir()[1:]}
		for _, n := range names {
			g.Items = append(g.Items, galleryItem{Name: n, URL: figureURL(kind, n)})
		}
		total += len(g.Items)
		galleries = append(galleries, g)
	}

	data := figuresPage{
		baseTemplateData: s.theme.base("Figures", fmt.Sprintf("%d figure(s)", total), s.pageTree(r)),
		Galleries:        galleries,
	}
	s.theme.render(w, r, http.StatusOK, pageFigures, data)
}

func (s *server) serveTOCJSON(w http.ResponseWriter, r *http.Request) {
	entries, err := expandTree(s.tree)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []*treeEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// serveTOCChildren returns one tree level; ?node= is a node id, empty for the
// books.
func (s *server) serveTOCChildren(w http.ResponseWriter, r *http.Request) {
	var parent toc.Node
	if id := r.URL.Query().Get("node"); id != "" {
		n, err := toc.ParseNodeID(id)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}
		parent = n
	}

	children, err := s.tree.Children(parent)
	switch {
	case errors.Is(err, toc.ErrBookNotFound):
		writeJSONError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, toc.ErrMalformedBook):
		log.Printf("Warning: %v", err)
		writeJSONError(w, http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}

	entries := make([]*treeEntry, 0, len(children))
	for _, c := range children {
		entries = append(entries, newTreeEntry(c))
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *server) serveDocumentLinks(w http.ResponseWriter, r *http.Request) {
	kind, err := content.ParseKind(urlParam(r, "kind"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	path, err := s.repo.DocumentPath(kind, urlParam(r, "ident"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	src, err := os.ReadFile(path) // #nosec G304 -- name validated by DocumentPath
	if err != nil {
		writeJSONError(w, http.StatusNotFound, fmt.Errorf("%w: %s", content.ErrDocumentAbsent, s.relPath(path)))
		return
	}

	links := documentLinks(s.repo, string(src))
	if links == nil {
		links = []documentLink{}
	}
	writeJSON(w, http.StatusOK, links)
}

// resolveResponse is the JSON form of a resolver.Report.
type resolveResponse struct {
	*resolver.Report
	MetadataAvailable bool   `json:"metadataAvailable"`
	MetadataError     string `json:"metadataError,omitempty"`
}

func (s *server) serveResolveJSON(w http.ResponseWriter, r *http.Request) {
	_, _, asset, err := s.figureAsset(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := os.Stat(asset); err != nil {
		writeJSONError(w, http.StatusNotFound, fmt.Errorf("figure not found: %s", s.relPath(asset)))
		return
	}

	report, err := resolver.Resolve(r.Context(), s.repo, asset)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	resp := resolveResponse{Report: report, MetadataAvailable: report.MetadataAvailable()}
	if report.MetadataErr != nil {
		resp.MetadataError = report.MetadataErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
