package sse

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

// Event is one framed server-sent event.
type Event struct {
	ID   uint64
	Name string
	Data []byte
}

type Client struct {
	id     string
	groups map[string]bool
	ch     chan Event
	done   chan struct{}
}

// Hub fans events out to streaming HTTP clients by group, the same way the
// websocket hub does by room. Slow clients drop events rather than block.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	groups   map[string]map[string]bool // group -> clientID set
	interval time.Duration
	retryMs  int
	bufSize  int
	seq      atomic.Uint64
}

func NewHub(interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Hub{
		clients:  make(map[string]*Client),
		groups:   make(map[string]map[string]bool),
		interval: interval,
		retryMs:  5000,
		bufSize:  64,
	}
}

func (h *Hub) AddClient(id string, groups ...string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &Client{id: id, groups: make(map[string]bool), ch: make(chan Event, h.bufSize), done: make(chan struct{})}
	h.clients[id] = c
	for _, g := range groups {
		h.joinLocked(c, g)
	}
	return c
}

func (h *Hub) RemoveClient(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	close(c.done)
	for g := range c.groups {
		delete(h.groups[g], id)
		if len(h.groups[g]) == 0 {
			delete(h.groups, g)
		}
	}
	delete(h.clients, id)
}

func (h *Hub) joinLocked(c *Client, group string) {
	c.groups[group] = true
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]bool)
	}
	h.groups[group][c.id] = true
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) encode(event string, v interface{}) (Event, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return Event{}, false
	}
	return Event{ID: h.seq.Add(1), Name: event, Data: data}, true
}

// SendToGroup queues event for every client in group and returns how many
// accepted it.
func (h *Hub) SendToGroup(group, event string, v interface{}) int {
	ev, ok := h.encode(event, v)
	if !ok {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for id := range h.groups[group] {
		if c := h.clients[id]; c != nil && offer(c, ev) {
			n++
		}
	}
	return n
}

func (h *Hub) SendAll(event string, v interface{}) int {
	ev, ok := h.encode(event, v)
	if !ok {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.clients {
		if offer(c, ev) {
			n++
		}
	}
	return n
}

func offer(c *Client, ev Event) bool {
	select {
	case c.ch <- ev:
		return true
	default:
		return false
	}
}

func write(w http.ResponseWriter, ev Event) {
	if ev.ID > 0 {
		fmt.Fprintf(w, "id: %d\n", ev.ID)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
}

// Serve streams events for clientID until the request ends. The client
// joins groups for the lifetime of the stream.
func (h *Hub) Serve(c *gin.Context, clientID string, groups ...string) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	client := h.AddClient(clientID, groups...)
	defer h.RemoveClient(clientID)

	fmt.Fprintf(c.Writer, "retry: %d\n\n", h.retryMs)
	hello, _ := json.Marshal(gin.H{"clientId": clientID, "groups": groups})
	write(c.Writer, Event{Name: "connected", Data: hello})
	flusher.Flush()

	ping := time.NewTicker(h.interval)
	defer ping.Stop()
	for {
		select {
		case <-client.done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			write(c.Writer, Event{Name: "ping", Data: []byte("{}")})
			flusher.Flush()
		case ev := <-client.ch:
			write(c.Writer, ev)
			flusher.Flush()
		}
	}
}

// Close ends every open stream.
func (h *Hub) Close() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	for _, id := range ids {
		h.RemoveClient(id)
	}
}
