package session

import "sync"

// dispatcher serialises callback invocations. Mutating code appends
// callbacks with add while it holds the controller lock, then calls run
// after releasing it. The first goroutine to run becomes the drainer and
// executes callbacks in append order; a nested run (a callback calling
// back into the controller) just appends and returns, so callbacks never
// recurse and always observe a consistent order.
type dispatcher struct {
	mu       sync.Mutex
	queue    []func()
	draining bool
}

func (d *dispatcher) add(fn func()) {
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	d.mu.Unlock()
}

func (d *dispatcher) run() {
	d.mu.Lock()
	if d.draining {
		d.mu.Unlock()
		return
	}
	d.draining = true
	for len(d.queue) > 0 {
		next := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()
		next()
		d.mu.Lock()
	}
	d.draining = false
	d.mu.Unlock()
}
