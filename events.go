package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Event types pushed to browsers over SSE.
const (
	eventFigureChanged   = "figure_changed"
	eventDocumentChanged = "document_changed"
	eventTreeChanged     = "tree_changed"
	eventPanelGone       = "panel_gone"
	eventConnection      = "connection_status"
)

// sseKeepalive stays below common proxy idle timeouts.
const sseKeepalive = 10 * time.Second

// eventMessage is the JSON payload of every SSE event.
type eventMessage struct {
	Type  string `json:"type"`
	Panel string `json:"panel,omitempty"`
	Path  string `json:"path,omitempty"`
	Count int    `json:"count,omitempty"`
}

// eventRecord stores a single SSE event with ID for replay
type eventRecord struct {
	id   string
	data string
}

// eventBuffer keeps the most recent events so reconnecting clients can catch
// up with Last-Event-ID.
type eventBuffer struct {
	mu      sync.RWMutex
	events  []eventRecord
	counter uint64
	maxSize int
}

func newEventBuffer(maxSize int) *eventBuffer {
	return &eventBuffer{
		events:  make([]eventRecord, 0, maxSize),
		maxSize: maxSize,
	}
}

// add assigns an event ID, stores the event, and returns the ID
func (eb *eventBuffer) add(data string) string {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.counter++
	id := strconv.FormatUint(eb.counter, 10)

	if len(eb.events) >= eb.maxSize {
		eb.events = eb.events[1:]
	}
	eb.events = append(eb.events, eventRecord{id: id, data: data})
	return id
}

// getAfter returns all events after the specified ID
func (eb *eventBuffer) getAfter(lastID string) []eventRecord {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	var result []eventRecord
	foundLast := false
	for _, evt := range eb.events {
		if foundLast {
			result = append(result, evt)
		}
		if evt.id == lastID {
			foundLast = true
		}
	}
	return result
}

// sseClient is one connected browser tab. panel is the figure panel the tab
// shows, if any.
type sseClient struct {
	ch    chan string
	panel string
}

// eventHub fans events out to connected SSE clients.
type eventHub struct {
	mu      sync.RWMutex
	clients map[*sseClient]bool
	buffer  *eventBuffer

	// onPanelIdle runs after the last client of a panel disconnects.
	onPanelIdle func(panelID string)
}

func newEventHub(bufferSize int) *eventHub {
	return &eventHub{
		clients: make(map[*sseClient]bool),
		buffer:  newEventBuffer(bufferSize),
	}
}

func (h *eventHub) subscribe(panel string) (*sseClient, int) {
	c := &sseClient{ch: make(chan string, 10), panel: panel}
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	return c, n
}

// unsubscribe removes c and reports the remaining client count and how many
// clients still watch c's panel.
func (h *eventHub) unsubscribe(c *sseClient) (total, samePanel int) {
	h.mu.Lock()
	delete(h.clients, c)
	close(c.ch)
	total = len(h.clients)
	h.mu.Unlock()
	return total, h.panelClients(c.panel)
}

func (h *eventHub) panelClients(panel string) int {
	if panel == "" {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.panel == panel {
			n++
		}
	}
	return n
}

func (h *eventHub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// publish buffers msg and sends it to every client without blocking; slow
// clients drop events.
func (h *eventHub) publish(msg eventMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling %s message: %v", msg.Type, err)
		return
	}
	id := h.buffer.add(string(data))
	formatted := fmt.Sprintf("id: %s\ndata: %s", id, data)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.ch <- formatted:
		default:
		}
	}
}

func (s *server) serveSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Printf("SSE error: ResponseWriter doesn't support flushing")
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	panelID := r.URL.Query().Get("panel")
	// subscribe before the lookup so a disposal racing with this request
	// either sees the client or is seen here
	client, count := s.hub.subscribe(panelID)
	if panelID != "" {
		if _, found := s.panels.get(panelID); !found {
			s.hub.unsubscribe(client)
			data, _ := json.Marshal(eventMessage{Type: eventPanelGone, Panel: panelID})
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
			return
		}
	}
	s.hub.publish(eventMessage{Type: eventConnection, Count: count})

	defer func() {
		remaining, samePanel := s.hub.unsubscribe(client)
		s.hub.publish(eventMessage{Type: eventConnection, Count: remaining})
		if panelID != "" && samePanel == 0 && s.hub.onPanelIdle != nil {
			s.hub.onPanelIdle(panelID)
		}
	}()

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	if lastEventID := r.Header.Get("Last-Event-ID"); lastEventID != "" {
		missed := s.hub.buffer.getAfter(lastEventID)
		if len(missed) > 0 {
			log.Printf("Replaying %d missed events after %s", len(missed), lastEventID)
			for _, evt := range missed {
				fmt.Fprintf(w, "id: %s\ndata: %s\n\n", evt.id, evt.data)
			}
			flusher.Flush()
		}
	}

	ticker := time.NewTicker(sseKeepalive)
	defer ticker.Stop()

	for {
		select {
		case message := <-client.ch:
			if _, err := fmt.Fprintf(w, "%s\n\n", message); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
