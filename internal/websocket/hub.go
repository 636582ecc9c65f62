// Package websocket pushes reminder lifecycle events to connected clients.
package websocket

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
)

// Message is one reminder event as sent to clients.
type Message struct {
	Type    string         `json:"type"`
	Action  string         `json:"action"`
	HabitID int64          `json:"habit_id,omitempty"`
	IDs     []string       `json:"ids,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// NewMessage builds a Message from an event type such as
// "reminder_scheduled"; the action is the part after the prefix.
func NewMessage(eventType string, habitID int64, ids []string, extra map[string]any) Message {
	return Message{
		Type:    eventType,
		Action:  strings.TrimPrefix(eventType, "reminder_"),
		HabitID: habitID,
		IDs:     ids,
		Extra:   extra,
	}
}

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client connected", "clients", n)
}

// Unregister removes a client and closes its send channel. Calling it twice
// is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Debug("client disconnected", "clients", n)
	}
}

// Broadcast queues msg for every client. Slow clients whose buffer is full
// miss the message.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("broadcast dropped for slow clients", "type", msg.Type, "dropped", dropped)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
