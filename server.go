package main

import (
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/razvandimescu/bookpeek/internal/config"
	"github.com/razvandimescu/bookpeek/internal/content"
	"github.com/razvandimescu/bookpeek/internal/toc"
)

// panelIdleGrace is how long a panel without subscribers survives, so a page
// reload can pick it up again.
const panelIdleGrace = 5 * time.Second

// server owns all state of one preview session.
type server struct {
	cfg    *config.Config
	repo   content.Repository
	tree   toc.Tree
	theme  *theme
	md     goldmark.Markdown
	policy *bluemonday.Policy
	panels *panelRegistry
	hub    *eventHub
	docs   contentWatcher

	verbose   bool
	idleGrace time.Duration
}

func newServer(cfg *config.Config) (*server, error) {
	th, err := loadTheme()
	if err != nil {
		return nil, err
	}

	repo := content.New(cfg.Root)
	s := &server{
		cfg:       cfg,
		repo:      repo,
		tree:      toc.Tree{Repo: repo},
		theme:     th,
		md:        newMarkdownRenderer(),
		policy:    newSanitizer(),
		hub:       newEventHub(50),
		idleGrace: panelIdleGrace,
	}
	s.panels = newPanelRegistry(func(p *panel) {
		s.hub.publish(eventMessage{Type: eventFigureChanged, Panel: p.ID, Path: figureURL(p.Kind, p.Name)})
	})
	s.hub.onPanelIdle = s.scheduleDispose
	return s, nil
}

// watchContent starts following toc and document folders.
func (s *server) watchContent() error {
	return s.docs.start(s.repo, s.hub.publish)
}

// scheduleDispose drops a panel once it has had no subscriber for idleGrace.
func (s *server) scheduleDispose(panelID string) {
	time.AfterFunc(s.idleGrace, func() {
		if s.hub.panelClients(panelID) > 0 {
			return
		}
		if s.disposePanel(panelID) {
			log.Printf("Disposed idle figure panel %s", panelID)
		}
	})
}

// disposePanel closes the panel and tells its tabs to reload. A tab that
// subscribed after the idle check still sees panel_gone.
func (s *server) disposePanel(panelID string) bool {
	if !s.panels.dispose(panelID) {
		return false
	}
	s.hub.publish(eventMessage{Type: eventPanelGone, Panel: panelID})
	return true
}

func (s *server) close() {
	s.docs.close()
	s.panels.close()
}

// withRecovery wraps an HTTP handler with panic recovery
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				log.Printf("PANIC: %v\n%s", err, debug.Stack())
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// routes registers all HTTP routes
func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	if s.verbose {
		r.Use(middleware.Logger)
	}
	r.Use(withRecovery)
	r.Use(middleware.GetHead)

	r.Get("/", s.serveHome)
	r.Get("/tree-html", s.serveTreeHTML)
	r.Get("/events", s.serveSSE)

	r.Get("/doc/{kind}/{ident}", s.serveDocument)
	r.Get("/open/{ident}", s.openIdent)
	r.Get("/html/{ident}", s.openRenderedHTML)
	if s.cfg.BuildRepo != "" {
		buildDir := filepath.Join(s.cfg.BuildRepo, "build")
		r.Handle("/build/*", http.StripPrefix("/build/", http.FileServer(http.Dir(buildDir))))
	}

	r.Get("/figures", s.serveFigureIndex)
	r.Get("/figure/{kind}/{name}", s.serveFigure)
	r.Get("/asset/{kind}/{name}", s.serveAsset)

	r.Route("/api", func(r chi.Router) {
		r.Get("/toc", s.serveTOCJSON)
		r.Get("/toc/children", s.serveTOCChildren)
		r.Get("/links/{kind}/{ident}", s.serveDocumentLinks)
		r.Get("/resolve/{kind}/{name}", s.serveResolveJSON)
	})
	return r
}

func (s *server) listenAddr() string {
	return fmt.Sprintf("localhost:%d", s.cfg.Port)
}
