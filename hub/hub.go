package hub

import (
	"log/slog"
	"sync"

	"github.com/Banegasn/canvas/domain"
)

// Hub is the set of live connections, keyed by connection id.
type Hub struct {
	clients map[string]domain.Connection
	mu      sync.RWMutex
}

func New() *Hub {
	return &Hub{
		clients: make(map[string]domain.Connection),
	}
}

// Register adds conn unless a connection with the same id is already present.
func (h *Hub) Register(conn domain.Connection) (id string, added bool) {
	id = conn.ID()

	h.mu.Lock()
	if _, exists := h.clients[id]; exists {
		h.mu.Unlock()
		return id, false
	}
	h.clients[id] = conn
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("client connected", "clientId", id, "online", count)
	return id, true
}

// Unregister removes conn. Removing an unknown connection is a no-op.
func (h *Hub) Unregister(conn domain.Connection) bool {
	h.mu.Lock()
	current, exists := h.clients[conn.ID()]
	if !exists || current != conn {
		h.mu.Unlock()
		return false
	}
	delete(h.clients, conn.ID())
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("client disconnected", "clientId", conn.ID(), "online", count)
	return true
}

// ForEachOpen calls fn for every registered connection that is OPEN at
// the time fn would be invoked. The membership is copied first, so fn
// may register or unregister connections.
func (h *Hub) ForEachOpen(fn func(conn domain.Connection)) {
	for _, conn := range h.members() {
		if conn.State() != domain.StateOpen {
			continue
		}
		fn(conn)
	}
}

func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every registered connection regardless of state.
func (h *Hub) CloseAll() {
	for _, conn := range h.members() {
		if err := conn.Close(); err != nil {
			slog.Debug("close error", "clientId", conn.ID(), "error", err)
		}
	}
}

func (h *Hub) members() []domain.Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]domain.Connection, 0, len(h.clients))
	for _, conn := range h.clients {
		out = append(out, conn)
	}
	return out
}
