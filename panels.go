package main

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/razvandimescu/bookpeek/internal/content"
)

// panel is an open figure preview. It owns a watcher on the asset directory
// that reports changes to the asset and its sidecars (same stem).
type panel struct {
	ID    string
	Kind  content.FigureKind
	Name  string
	Asset string

	version atomic.Int64
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
}

// Version increases on every observed change to the asset or its sidecars.
func (p *panel) Version() int64 {
	return p.version.Load()
}

func (p *panel) close() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.watcher != nil {
		if err := p.watcher.Close(); err != nil {
			log.Printf("Failed to close watcher for %s: %v", p.Asset, err)
		}
	}
}

// panelRegistry tracks open figure previews. Opening the same figure twice
// reuses the existing panel.
type panelRegistry struct {
	mu     sync.Mutex
	byKey  map[string]*panel
	byID   map[string]*panel
	closed bool

	// onChange is called from the watcher goroutine after a panel's version
	// was bumped.
	onChange func(p *panel)
}

func newPanelRegistry(onChange func(p *panel)) *panelRegistry {
	return &panelRegistry{
		byKey:    make(map[string]*panel),
		byID:     make(map[string]*panel),
		onChange: onChange,
	}
}

func panelKey(kind content.FigureKind, name string) string {
	return string(kind) + "/" + name
}

// open returns the panel for the figure, creating and watching it if needed.
// created reports whether a new panel was made. A watcher failure is logged
// and leaves the panel without live refresh.
func (r *panelRegistry) open(kind content.FigureKind, name, asset string) (p *panel, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := panelKey(kind, name)
	if existing, ok := r.byKey[key]; ok {
		return existing, false
	}

	p = &panel{
		ID:    uuid.NewString(),
		Kind:  kind,
		Name:  name,
		Asset: asset,
	}
	if !r.closed {
		if err := r.watch(p); err != nil {
			log.Printf("Warning: live refresh unavailable for %s: %v", asset, err)
		}
	}
	r.byKey[key] = p
	r.byID[p.ID] = p
	return p, true
}

func (r *panelRegistry) watch(p *panel) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// the directory, not the file, so atomic replaces and new sidecars are seen
	if err := watcher.Add(filepath.Dir(p.Asset)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			log.Printf("Failed to close watcher after add error: %v", closeErr)
		}
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.watcher = watcher
	p.cancel = cancel
	go r.watchPanel(ctx, p, watcher)
	return nil
}

func (r *panelRegistry) watchPanel(ctx context.Context, p *panel, watcher *fsnotify.Watcher) {
	stem := content.Stem(p.Asset)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if content.Stem(event.Name) != stem || event.Op == fsnotify.Chmod {
				continue
			}
			p.version.Add(1)
			log.Printf("Figure changed: %s (%s)", event.Name, event.Op)
			if r.onChange != nil {
				r.onChange(p)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error for %s: %v", p.Asset, err)
		}
	}
}

func (r *panelRegistry) get(id string) (*panel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	return p, ok
}

// dispose closes and forgets the panel. It reports whether the panel existed.
func (r *panelRegistry) dispose(id string) bool {
	r.mu.Lock()
	p, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
		delete(r.byKey, panelKey(p.Kind, p.Name))
	}
	r.mu.Unlock()

	if ok {
		p.close()
	}
	return ok
}

func (r *panelRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// close disposes every panel; later opens create unwatched panels.
func (r *panelRegistry) close() {
	r.mu.Lock()
	panels := make([]*panel, 0, len(r.byID))
	for _, p := range r.byID {
		panels = append(panels, p)
	}
	r.byID = make(map[string]*panel)
	r.byKey = make(map[string]*panel)
	r.closed = true
	r.mu.Unlock()

	for _, p := range panels {
		p.close()
	}
}
