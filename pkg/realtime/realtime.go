// Package realtime is the in-process fan-out hub for local state-change
// events. Whenever a store mutates (optimistic push, authoritative replace,
// mark-all-read), the agent broadcasts a StateEvent here and every attached
// listener (chiefly websocket sessions of the local API) receives it on
// its own buffered channel.
//
// Delivery is best effort: a listener whose buffer is full has the event
// dropped for it alone, so a slow UI can never backpressure reconciliation.
// There is no persistence or replay; late subscribers start from the current
// snapshot served by the HTTP API.
package realtime

import (
	"sync"
	"time"
)

// StateEvent describes one local state transition.
type StateEvent struct {
	// Scope is the scope key the change belongs to ("global" or a
	// livestream id).
	Scope string `json:"scope"`
	// Domain is the state domain: "notifications", "pinned" or "cart".
	Domain string `json:"domain"`
	// Kind tells consumers how the state moved: "optimistic" for a
	// self-sufficient reducer update, "replace" for an authoritative
	// snapshot swap, "cleared" on teardown.
	Kind string `json:"kind"`
	// At is the local transition time.
	At time.Time `json:"at"`
}

// Event kinds.
const (
	KindOptimistic = "optimistic"
	KindReplace    = "replace"
	KindCleared    = "cleared"
)

// Hub fans StateEvents out to registered listeners. Concurrency-safe.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan StateEvent
	nextID    uint64
	bufSize   int
}

// NewHub constructs a hub with the given per-listener buffer size.
// bufSize <= 0 selects a default of 32.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{
		listeners: make(map[uint64]chan StateEvent),
		bufSize:   bufSize,
	}
}

// Register adds a listener and returns its id and receive channel. Callers
// must Unregister(id) to release the channel.
func (h *Hub) Register() (uint64, <-chan StateEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan StateEvent, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes a listener and closes its channel. Unknown ids are
// ignored; calling twice is safe.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Broadcast delivers ev to every listener, dropping it for any whose buffer
// is full. A zero At is stamped with the current time.
func (h *Hub) Broadcast(ev StateEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- ev:
		default:
			// Drop for slow listener.
		}
	}
}

// Size returns the number of active listeners.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
