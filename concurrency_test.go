package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/razvandimescu/bookpeek/internal/content"
	"github.com/razvandimescu/bookpeek/internal/toc"
)

// TestPanelRegistry_CreateOrReuse opens the same figure from many goroutines.
// Run with: go test -race
func TestPanelRegistry_CreateOrReuse(t *testing.T) {
	r := newTestRepo(t)
	asset := filepath.Join(r.repo.FigureDir(content.Drawing), "42.svg")
	reg := newPanelRegistry(nil)
	t.Cleanup(reg.close)

	var wg sync.WaitGroup
	ids := make([]string, 10)
	created := make([]bool, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, c := reg.open(content.Drawing, "42.svg", asset)
			ids[i], created[i] = p.ID, c
		}(i)
	}
	wg.Wait()

	creations := 0
	for i, id := range ids {
		if id != ids[0] {
			t.Errorf("panel %d has id %s, want %s", i, id, ids[0])
		}
		if created[i] {
			creations++
		}
	}
	if creations != 1 {
		t.Errorf("expected exactly one creation, got %d", creations)
	}
	if reg.len() != 1 {
		t.Errorf("expected 1 panel, got %d", reg.len())
	}

	// a different figure gets its own panel
	photo, isNew := reg.open(content.Photo, "7.png", filepath.Join(r.repo.FigureDir(content.Photo), "7.png"))
	if !isNew || photo.ID == ids[0] {
		t.Error("expected a new panel for another figure")
	}
}

func TestPanelRegistry_Dispose(t *testing.T) {
	r := newTestRepo(t)
	reg := newPanelRegistry(nil)
	t.Cleanup(reg.close)

	p, _ := reg.open(content.Drawing, "42.svg", filepath.Join(r.repo.FigureDir(content.Drawing), "42.svg"))
	if !reg.dispose(p.ID) {
		t.Fatal("dispose of an open panel reported false")
	}
	if reg.dispose(p.ID) {
		t.Error("second dispose reported true")
	}
	if _, ok := reg.get(p.ID); ok {
		t.Error("disposed panel still registered")
	}

	again, created := reg.open(content.Drawing, "42.svg", p.Asset)
	if !created || again.ID == p.ID {
		t.Error("reopening after dispose should create a fresh panel")
	}
}

// TestPanelWatcher_FigureChanged edits a sidecar and expects figure_changed
// for the panel showing the drawing.
func TestPanelWatcher_FigureChanged(t *testing.T) {
	r := newTestRepo(t)
	s, h := newTestServer(t, r, nil)

	w := doGet(t, h, "/figure/drawings/42.svg")
	assertStatusCode(t, w.Code, http.StatusOK)
	p, created := s.panels.open(content.Drawing, "42.svg", "")
	if created {
		t.Fatal("figure request did not register a panel")
	}

	client, _ := s.hub.subscribe(p.ID)
	defer s.hub.unsubscribe(client)

	// unrelated figure in the same directory
	r.write("contents/drawings/43.svg", testSVG)
	r.write("contents/drawings/42.txt", "Neue Beschreibung")

	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-client.ch:
			msg := decodeEvent(t, raw)
			if msg.Type != eventFigureChanged {
				continue
			}
			if msg.Panel != p.ID || msg.Path != "/figure/drawings/42.svg" {
				t.Fatalf("unexpected event: %+v", msg)
			}
			if p.Version() == 0 {
				t.Error("panel version not bumped")
			}
			return
		case <-deadline:
			t.Fatal("no figure_changed event within timeout")
		}
	}
}

// decodeEvent parses an "id: N\ndata: {...}" hub message.
func decodeEvent(t *testing.T, raw string) eventMessage {
	t.Helper()
	_, data, ok := strings.Cut(raw, "data: ")
	if !ok {
		t.Fatalf("malformed event %q", raw)
	}
	var msg eventMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return msg
}

// TestConcurrentHubAccess tests concurrent SSE client management
func TestConcurrentHubAccess(t *testing.T) {
	hub := newEventHub(50)
	var wg sync.WaitGroup

	clients := make([]*sseClient, 10)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clients[i], _ = hub.subscribe("")
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.publish(eventMessage{Type: eventTreeChanged})
		}()
	}
	wg.Wait()

	for _, c := range clients {
		wg.Add(1)
		go func(c *sseClient) {
			defer wg.Done()
			hub.unsubscribe(c)
		}(c)
	}
	wg.Wait()

	if n := hub.clientCount(); n != 0 {
		t.Errorf("expected no clients, got %d", n)
	}
}

func TestEventBuffer_GetAfter(t *testing.T) {
	buf := newEventBuffer(3)
	for _, d := range []string{"a", "b", "c", "d"} {
		buf.add(d)
	}

	// "1" fell out of the buffer
	if got := buf.getAfter("1"); len(got) != 0 {
		t.Errorf("expected nothing after an evicted id, got %+v", got)
	}
	got := buf.getAfter("2")
	if len(got) != 2 || got[0].data != "c" || got[1].data != "d" {
		t.Errorf("unexpected replay: %+v", got)
	}
}

func TestServeSSE_Replay(t *testing.T) {
	s, h := newTestServer(t, newTestRepo(t), nil)
	s.hub.publish(eventMessage{Type: eventTreeChanged, Path: "first"})
	s.hub.publish(eventMessage{Type: eventTreeChanged, Path: "second"})
	s.hub.publish(eventMessage{Type: eventDocumentChanged, Path: "/doc/section/ohm"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	body := w.Body.String()
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	assertContains(t, body, ": connected")
	assertContains(t, body, "id: 2\n")
	assertContains(t, body, "id: 3\n")
	assertContains(t, body, `"path":"/doc/section/ohm"`)
	assertNotContains(t, body, `"path":"first"`)
}

func TestServeSSE_UnknownPanel(t *testing.T) {
	s, h := newTestServer(t, newTestRepo(t), nil)

	w := doGet(t, h, "/events?panel=does-not-exist")
	assertStatusCode(t, w.Code, http.StatusOK)
	assertContains(t, w.Body.String(), `"type":"panel_gone"`)
	assertContains(t, w.Body.String(), `"panel":"does-not-exist"`)
	if n := s.hub.clientCount(); n != 0 {
		t.Errorf("rejected client still subscribed: %d clients", n)
	}
}

// TestServeSSE_IdleDisposal closes the only subscriber of a panel and expects
// the panel to be dropped after the grace period.
func TestServeSSE_IdleDisposal(t *testing.T) {
	r := newTestRepo(t)
	s, h := newTestServer(t, r, nil)
	ts := httptest.NewServer(h)
	defer ts.Close()

	p, _ := s.panels.open(content.Drawing, "42.svg", filepath.Join(r.repo.FigureDir(content.Drawing), "42.svg"))

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events?panel="+p.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	sse, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer sse.Body.Close()

	if !waitFor(t, 2*time.Second, func() bool { return s.hub.panelClients(p.ID) == 1 }) {
		t.Fatal("SSE client never subscribed")
	}
	if s.panels.len() != 1 {
		t.Fatalf("expected 1 panel while subscribed, got %d", s.panels.len())
	}

	cancel()
	if !waitFor(t, 2*time.Second, func() bool { return s.panels.len() == 0 }) {
		t.Error("panel not disposed after its last subscriber left")
	}
}

// TestServeFigure_DisposedWithoutSubscriber opens a figure page that never
// connects to /events, as curl or a closed tab would.
func TestServeFigure_DisposedWithoutSubscriber(t *testing.T) {
	s, h := newTestServer(t, newTestRepo(t), nil)

	w := doGet(t, h, "/figure/drawings/42.svg")
	assertStatusCode(t, w.Code, http.StatusOK)

	if !waitFor(t, 2*time.Second, func() bool { return s.panels.len() == 0 }) {
		t.Errorf("panel without subscriber never disposed: %d live panels", s.panels.len())
	}
}

// TestDisposePanel_NotifiesSubscribers covers a tab that subscribed after
// the idle check: it must still learn that its panel is gone.
func TestDisposePanel_NotifiesSubscribers(t *testing.T) {
	s, _ := newTestServer(t, newTestRepo(t), nil)
	p, _ := s.panels.open(content.Drawing, "42.svg", "")
	client, _ := s.hub.subscribe(p.ID)
	defer s.hub.unsubscribe(client)

	if !s.disposePanel(p.ID) {
		t.Fatal("disposePanel reported no panel")
	}
	if s.disposePanel(p.ID) {
		t.Error("second disposePanel should report no panel")
	}

	select {
	case msg := <-client.ch:
		got := decodeEvent(t, msg)
		if got.Type != eventPanelGone || got.Panel != p.ID {
			t.Errorf("unexpected event: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no panel_gone event")
	}
}

func TestConcurrentFigureRequests(t *testing.T) {
	s, h := newTestServer(t, newTestRepo(t), nil)
	s.idleGrace = time.Minute

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := doGet(t, h, "/figure/drawings/42.svg")
			if w.Code != http.StatusOK {
				t.Errorf("expected 200, got %d", w.Code)
			}
		}()
	}
	wg.Wait()

	if n := s.panels.len(); n != 1 {
		t.Errorf("expected 1 shared panel, got %d", n)
	}
}

func TestConcurrentTreeGeneration(t *testing.T) {
	r := newTestRepo(t)
	tree := toc.Tree{Repo: r.repo}

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = generateTreeHTML(tree)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if got != results[0] {
			t.Errorf("tree %d differs from tree 0", i)
		}
	}
}

func TestClassifyEvent(t *testing.T) {
	repo := content.New("/repo")
	sections := repo.DocumentDir(content.KindSection)

	tests := []struct {
		name  string
		event fsnotify.Event
		want  eventMessage
		ok    bool
	}{
		{
			name:  "toc edited",
			event: fsnotify.Event{Name: filepath.Join(repo.TOCDir(), "NEA.json"), Op: fsnotify.Write},
			want:  eventMessage{Type: eventTreeChanged, Path: filepath.Join(repo.TOCDir(), "NEA.json")},
			ok:    true,
		},
		{
			name:  "document created",
			event: fsnotify.Event{Name: filepath.Join(sections, "neu.md"), Op: fsnotify.Create},
			want:  eventMessage{Type: eventTreeChanged, Path: filepath.Join(sections, "neu.md")},
			ok:    true,
		},
		{
			name:  "document edited",
			event: fsnotify.Event{Name: filepath.Join(sections, "ohm.md"), Op: fsnotify.Write},
			want:  eventMessage{Type: eventDocumentChanged, Path: "/doc/section/ohm"},
			ok:    true,
		},
		{
			name:  "chmod ignored",
			event: fsnotify.Event{Name: filepath.Join(sections, "ohm.md"), Op: fsnotify.Chmod},
		},
		{
			name:  "other file ignored",
			event: fsnotify.Event{Name: filepath.Join(repo.TOCDir(), "notes.txt"), Op: fsnotify.Write},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := classifyEvent(repo, tt.event)
			if ok != tt.ok || got != tt.want {
				t.Errorf("classifyEvent = (%+v, %v), want (%+v, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

// TestWatchContentWithContext_ContextCancellation tests context cancellation handling
func TestWatchContentWithContext_ContextCancellation(t *testing.T) {
	r := newTestRepo(t)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		watchContentWithContext(ctx, watcher, r.repo, func(eventMessage) {})
		done <- true
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Error("watchContentWithContext did not exit on context cancellation within timeout")
	}
}

// TestContentWatcher_TreeChanged adds a toc file and expects tree_changed.
func TestContentWatcher_TreeChanged(t *testing.T) {
	r := newTestRepo(t)
	s, _ := newTestServer(t, r, nil)
	if err := s.watchContent(); err != nil {
		t.Fatalf("watchContent: %v", err)
	}

	client, _ := s.hub.subscribe("")
	defer s.hub.unsubscribe(client)

	r.write("toc/Neu.json", `{"chapters": []}`)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-client.ch:
			if decodeEvent(t, raw).Type == eventTreeChanged {
				return
			}
		case <-deadline:
			t.Fatal("no tree_changed event within timeout")
		}
	}
}
