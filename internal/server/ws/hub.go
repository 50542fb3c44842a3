package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	stdsync "sync"
	"time"

	"campussync/internal/bootstrap/logging"
	"campussync/internal/domain/feed"
	"campussync/internal/errs"
)

// Hub fans snapshot replacements and delta events out to connected UI
// clients. Clients that stop draining are dropped rather than allowed to
// stall the broadcast.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu        stdsync.RWMutex
	connected int
}

// Envelope is the wire shape of every hub message.
type Envelope struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run owns the client set until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "ws.hub"))

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.connected = 0
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.connected = len(h.clients)
			h.mu.Unlock()
			logging.Info(logCtx, "client connected", slog.Int("total", h.Connected()))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.connected = len(h.clients)
			}
			h.mu.Unlock()
			logging.Info(logCtx, "client disconnected", slog.Int("total", h.Connected()))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.connected = len(h.clients)
			h.mu.Unlock()
		}
	}
}

// Connected returns the current client count.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connected
}

func (h *Hub) send(ctx context.Context, messageType string, data any) {
	payload, err := json.Marshal(Envelope{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		logging.Warn(ctx, "broadcast encode failed",
			slog.String("type", messageType),
			slog.Any("err", errs.Loggable(err)))
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		logging.Warn(ctx, "broadcast queue full, message dropped", slog.String("type", messageType))
	}
}

// BroadcastReports pushes a complete report snapshot replacement.
func (h *Hub) BroadcastReports(ctx context.Context, reports []feed.Report) {
	h.send(ctx, "reports", reports)
}

// BroadcastAlerts pushes a complete alert snapshot replacement.
func (h *Hub) BroadcastAlerts(ctx context.Context, alerts []feed.EmergencyAlert) {
	h.send(ctx, "alerts", alerts)
}

// Publish delivers one derived notification event; satisfies the notifier's
// sink contract.
func (h *Hub) Publish(ctx context.Context, ev feed.Event) error {
	h.send(ctx, "event", ev)
	return nil
}
