package devmode

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types sent to dev clients
const (
	EventConsole   = "console"
	EventHeartbeat = "heartbeat"
)

// clientBuffer is the number of events a client may have queued before it is dropped
const clientBuffer = 256

// Broadcaster delivers an event to every connected dev client
type Broadcaster interface {
	Broadcast(eventType string, data any)
}

// Event is a single server-sent event
type Event struct {
	ID   string
	Type string
	Data any
}

// Encode formats the event in text/event-stream framing
func (e Event) Encode() (string, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s event: %w", e.Type, err)
	}
	return fmt.Sprintf("id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data), nil
}

// Client represents a connected dev client
type Client struct {
	ID       string
	Messages chan string

	done chan struct{}
	once sync.Once
}

// NewClient creates a client with a fresh ID
func NewClient() *Client {
	return &Client{
		ID:       uuid.NewString(),
		Messages: make(chan string, clientBuffer),
		done:     make(chan struct{}),
	}
}

// Done is closed once the hub has dropped the client
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub manages the dev event stream connections.
//
// Broadcast never blocks and never logs: it runs underneath the log package
// when console passthrough is on.
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

// Unregister removes a client and releases its stream
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	client.close()
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to all clients. Clients whose buffer is full are
// dropped; browsers reconnect on their own.
func (h *Hub) Broadcast(eventType string, data any) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	message, err := Event{ID: uuid.NewString(), Type: eventType, Data: data}.Encode()
	if err != nil {
		return
	}

	var stale []*Client
	for _, client := range clients {
		select {
		case client.Messages <- message:
		default:
			stale = append(stale, client)
		}
	}

	for _, client := range stale {
		h.Unregister(client)
	}
}

// Heartbeat sends a keep-alive event to every client
func (h *Hub) Heartbeat() {
	h.Broadcast(EventHeartbeat, time.Now().Unix())
}

// RunHeartbeat sends heartbeats every interval until ctx is cancelled
func (h *Hub) RunHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Heartbeat()
		}
	}
}

// CloseAll drops every client so open streams end
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for client := range clients {
		client.close()
	}
}

// ServeHTTP handles GET requests for the dev event stream
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := NewClient()
	log.Printf("Dev client %s connected from %s", client.ID, r.RemoteAddr)
	h.Register(client)
	defer func() {
		h.Unregister(client)
		log.Printf("Dev client %s disconnected", client.ID)
	}()

	// retry tells EventSource how long to wait before reconnecting
	fmt.Fprintf(w, "retry: 1000\n: connected %s\n\n", client.ID)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done():
			return
		case message := <-client.Messages:
			if _, err := fmt.Fprint(w, message); err != nil {
				return
			}
			// Drain whatever else is queued before flushing
			for drained := false; !drained; {
				select {
				case next := <-client.Messages:
					if _, err := fmt.Fprint(w, next); err != nil {
						return
					}
				default:
					drained = true
				}
			}
			flusher.Flush()
		}
	}
}
