// Package websocket bridges the message router onto websocket clients and
// pushes download notices to every connected client.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"vidgrab/internal/download"
	"vidgrab/pkg/contracts"
)

// Hub maintains the set of active clients and broadcasts frames to them.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *Metrics

	quit     chan struct{}
	stopOnce sync.Once
	running  bool
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		quit:       make(chan struct{}),
	}
}

// Start runs the hub loop in its own goroutine. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
}

// Run is the hub loop. It returns once Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()

			h.metrics.connected(client.ctx, 1)
			h.logger.InfoContext(client.ctx, "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				client.close()
			}
			count := len(h.clients)
			h.mu.Unlock()

			if ok {
				h.metrics.connected(client.ctx, -1)
				h.logger.InfoContext(client.ctx, "Client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			failed := 0
			for _, client := range clients {
				if !client.enqueue(message) {
					failed++
				}
			}
			h.logger.Debug("Broadcast frame",
				slog.Int("client_count", len(clients)),
				slog.Int("failed", failed),
				slog.Int("message_size", len(message)))
		}
	}
}

// Stop ends the hub loop and disconnects every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Register adds a client. It does nothing once the hub is stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		client.close()
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify broadcasts a download notice to every client.
func (h *Hub) Notify(ctx context.Context, n download.Notice) {
	frame := contracts.Frame{
		Type: contracts.FrameNotice,
		Notice: &contracts.Notice{
			Filename: n.Filename,
			URL:      n.URL,
			Message:  n.Message,
			At:       n.At,
		},
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling notice", slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- data:
		h.metrics.message(ctx, "out", contracts.FrameNotice)
	case <-h.quit:
	case <-ctx.Done():
		h.logger.WarnContext(ctx, "Notice dropped", slog.String("filename", n.Filename))
	}
}

var _ download.Notifier = (*Hub)(nil)
