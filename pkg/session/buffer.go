package session

import (
	"sync"

	"github.com/lumenvid/recap/internal/domain"
)

// eventBuffer queues decoded events during a pause and releases them in
// arrival order on resume. It is unbounded: a paused session must absorb
// whatever the stream delivers without blocking the read pump.
type eventBuffer struct {
	mu    sync.Mutex
	queue []domain.Event
}

func (b *eventBuffer) Append(ev domain.Event) {
	b.mu.Lock()
	b.queue = append(b.queue, ev)
	b.mu.Unlock()
}

// Drain returns the queued events in FIFO order and empties the buffer.
func (b *eventBuffer) Drain() []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.queue
	b.queue = nil
	return events
}

func (b *eventBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
