package ws

import (
	"sync"

	"palabre/internal/metrics"
	"palabre/internal/models"
)

const sendBuffer = 100

// Hub maps live connection ids to their outbound event channels. Each
// connection has exactly one queue and one writer goroutine draining it, so
// events reach a connection in the order they were issued.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]chan models.ServerEvent
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]chan models.ServerEvent)}
}

// Register creates the outbound queue for a new connection.
func (h *Hub) Register(connID string) chan models.ServerEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.ServerEvent, sendBuffer)
	h.conns[connID] = ch
	metrics.ActiveConnections.Inc()
	return ch
}

// Unregister drops a connection and closes its queue.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.conns[connID]; ok {
		close(ch)
		delete(h.conns, connID)
		metrics.ActiveConnections.Dec()
	}
}

// Send queues an event for one connection. A disconnected target or a full
// queue is a silent drop; the return value reports whether the event was
// queued. The send happens under the read lock: Unregister closes the
// channel under the write lock, so sending after releasing it could hit a
// closed channel.
func (h *Hub) Send(connID string, ev models.ServerEvent) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ch, ok := h.conns[connID]
	if !ok {
		return false
	}
	select {
	case ch <- ev:
		return true
	default:
		metrics.DroppedSends.Inc()
		return false
	}
}

// Broadcast queues an event for every connection except the listed ones.
func (h *Hub) Broadcast(ev models.ServerEvent, except ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID, ch := range h.conns {
		if contains(except, connID) {
			continue
		}
		select {
		case ch <- ev:
		default:
			metrics.DroppedSends.Inc()
		}
	}
}

// Connected reports whether a connection id is live.
func (h *Hub) Connected(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.conns[connID]
	return ok
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
