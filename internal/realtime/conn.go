package realtime

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lumenvid/recap/pkg/api"
)

const outboundBufferSize = 64

// conn is one attached monitor. The hub owns its lifecycle; writes go
// through a buffered channel so a slow reader never blocks Broadcast.
// queue and close synchronise on the conn's own mutex, so a broadcast
// racing a drop can never send on the closed channel.
type conn struct {
	ws *websocket.Conn

	mu     sync.Mutex
	send   chan api.MonitorEvent
	closed bool
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:   ws,
		send: make(chan api.MonitorEvent, outboundBufferSize),
	}
}

// queue enqueues an event without blocking. A false return means the
// conn is closed or its outbound buffer is full.
func (c *conn) queue(ev api.MonitorEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *conn) writeLoop() {
	for ev := range c.send {
		if err := c.ws.WriteJSON(ev); err != nil {
			return
		}
	}
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.ws.Close()
	close(c.send)
}
