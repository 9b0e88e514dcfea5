package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/partsflow/descgen-backend/internal/platform/logger"
)

// LogEntry is one line of run output pushed to the browser.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
	Type      string `json:"type"` // info | success | error
}

func NewLogEntry(level, message string) LogEntry {
	return LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   message,
		Type:      level,
	}
}

type Client struct {
	ID       uuid.UUID
	Outbound chan LogEntry
	done     chan struct{}
}

// backlogLimit bounds how many entries a late-joining client is replayed.
const backlogLimit = 200

// Hub fans run log entries out to connected SSE clients. The run worker is
// the single writer; any number of browser tabs may tail the stream. A
// bounded backlog is replayed to clients that connect mid-run.
type Hub struct {
	mu      sync.RWMutex
	log     *logger.Logger
	clients map[*Client]bool
	recent  []LogEntry
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:     log.With("component", "SSEHub"),
		clients: make(map[*Client]bool),
	}
}

func (h *Hub) AddClient() *Client {
	c := &Client{
		ID:       uuid.New(),
		Outbound: make(chan LogEntry, backlogLimit+64),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	for _, entry := range h.recent {
		c.Outbound <- entry
	}
	h.clients[c] = true
	h.mu.Unlock()
	h.log.Debug("SSE client connected", "client_id", c.ID)
	return c
}

func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.done)
	}
	h.mu.Unlock()
	h.log.Debug("SSE client disconnected", "client_id", c.ID)
}

// ResetBacklog drops the stored entries. Called when a new run begins so a
// fresh browser tab does not see the previous run's output.
func (h *Hub) ResetBacklog() {
	h.mu.Lock()
	h.recent = nil
	h.mu.Unlock()
}

// Broadcast never blocks the run worker: a client that cannot keep up loses
// entries rather than stalling generation.
func (h *Hub) Broadcast(entry LogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recent = append(h.recent, entry)
	if len(h.recent) > backlogLimit {
		h.recent = h.recent[len(h.recent)-backlogLimit:]
	}
	for c := range h.clients {
		select {
		case c.Outbound <- entry:
		default:
			h.log.Warn("Dropping log entry; client buffer full", "client_id", c.ID)
		}
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.done:
			return
		case <-keepAlive.C:
			_, _ = fmt.Fprint(w, "data: {\"keep_alive\": true}\n\n")
			flusher.Flush()
		case entry := <-client.Outbound:
			raw, err := json.Marshal(entry)
			if err != nil {
				h.log.Warn("Failed to marshal log entry", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "data: %s\n\n", raw)
			flusher.Flush()
		}
	}
}
