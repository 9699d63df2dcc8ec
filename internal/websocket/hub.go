// Package websocket pushes sync progress to browser clients.
package websocket

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/jonasrichard/mediamosaic/internal/logging"
	"github.com/jonasrichard/mediamosaic/internal/models"
)

// Client represents a WebSocket connection
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
	// Directory limits the client to events of one directory and its
	// subdirectories. Empty means every event.
	Directory string
}

// Wants reports whether the client subscribed to events of dir.
func (c *Client) Wants(dir string) bool {
	if c.Directory == "" || c.Directory == dir {
		return true
	}
	return strings.HasPrefix(dir, c.Directory+"/")
}

// Hub maintains active clients and broadcasts sync events
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *models.SyncEvent
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *models.SyncEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logging.Component(logger, "websocket"),
	}
}

// Publish queues an event for delivery. It never blocks: when the broadcast
// buffer is full the event is dropped.
func (h *Hub) Publish(event models.SyncEvent) {
	select {
	case h.broadcast <- &event:
	default:
		h.logger.Warn("dropping event, broadcast buffer full", "type", event.Type, "directory", event.Directory)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run processes registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client connected", "directory", client.Directory)

		case client := <-h.unregister:
			h.remove(client)

		case event := <-h.broadcast:
			payload := mustMarshal(h.logger, event)

			h.mu.Lock()
			for client := range h.clients {
				if !client.Wants(event.Directory) {
					continue
				}
				select {
				case client.Send <- payload:
				default:
					// Slow consumer
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a client. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
}
