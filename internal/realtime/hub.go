// Package realtime is the simulator's websocket monitor feed: every
// record the simulator emits on an analysis stream is mirrored to
// attached monitor connections so a browser or websocat can watch the
// wire traffic live. Monitors that attach mid-playback are caught up
// from a short replay history first.
package realtime

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lumenvid/recap/pkg/api"
)

// historyLimit bounds the catch-up replay for late joiners. It is kept
// well under the outbound buffer so the replay alone can never mark a
// fresh connection as slow.
const historyLimit = 32

type Hub struct {
	mu      sync.RWMutex
	conns   map[*conn]struct{}
	history []api.MonitorEvent
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*conn]struct{})}
}

// Attach registers a websocket connection, queues the recent history,
// and starts its write loop. The returned func detaches and closes the
// connection; calling it more than once is safe.
func (h *Hub) Attach(ws *websocket.Conn) (detach func()) {
	c := newConn(ws)

	h.mu.Lock()
	h.conns[c] = struct{}{}
	for _, ev := range h.history {
		c.queue(ev)
	}
	h.mu.Unlock()

	go c.writeLoop()

	return func() { h.drop(c) }
}

// Broadcast mirrors an event to every attached monitor and records it
// in the replay history. Monitors whose outbound buffers are full get
// dropped rather than stalling the playback.
func (h *Hub) Broadcast(ev api.MonitorEvent) {
	h.mu.Lock()
	h.history = append(h.history, ev)
	if len(h.history) > historyLimit {
		h.history = h.history[len(h.history)-historyLimit:]
	}
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if c.queue(ev) {
			continue
		}
		h.drop(c)
	}
}

// BeginStream clears the replay history. The simulator calls it when a
// new playback starts so late joiners are not shown a previous run.
func (h *Hub) BeginStream() {
	h.mu.Lock()
	h.history = nil
	h.mu.Unlock()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	_, ok := h.conns[c]
	if ok {
		delete(h.conns, c)
	}
	h.mu.Unlock()

	if ok {
		c.close()
	}
}
