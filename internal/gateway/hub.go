package gateway

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/phonescreen-labs/phonescreen-core/internal/protocol"
)

// client is one connected observer. Writes go through a buffered channel so
// one slow or dead connection never blocks the broadcast path.
type client struct {
	conn *websocket.Conn

	// mu guards send against shut. The read loop may still try to queue a
	// reply after the hub has dropped this observer; that must be a silent
	// drop, never a send on a closed channel.
	mu   sync.Mutex
	dead bool
	send chan protocol.ClientEnvelope
}

// enqueue hands a message to the write pump. Reports false when the
// observer is gone or its buffer is full.
func (c *client) enqueue(msg protocol.ClientEnvelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// shut closes the send channel exactly once; the write pump drains and
// closes the connection.
func (c *client) shut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dead {
		c.dead = true
		close(c.send)
	}
}

// Hub is the registry of connected observers. Observers come and go
// independently of any interview; delivery is best-effort per observer.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	log     *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     log,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// Broadcast queues an event for every connected observer. Observers whose
// send buffer is full are dropped rather than retried.
func (h *Hub) Broadcast(msg protocol.ClientEnvelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.enqueue(msg) {
			h.log.Warn("dropping slow observer")
			delete(h.clients, c)
			c.shut()
		}
	}
}

// Len reports the number of connected observers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll disconnects every observer, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.shut()
	}
}
