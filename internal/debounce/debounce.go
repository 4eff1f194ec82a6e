// Package debounce provides a reusable trailing-edge debouncer.
package debounce

import (
	"sync"
	"time"
)

// Debouncer collapses bursts of calls into a single invocation of fn
// carrying the arguments of the last call, scheduled one window after
// the burst goes quiet. A stopped debouncer never fires again.
type Debouncer[T any] struct {
	mu     sync.Mutex
	window time.Duration
	fn     func(T)
	timer  *time.Timer
	// gen invalidates expired timers that lost the race with Stop and
	// fire after a new call rearmed the window. A firing whose
	// generation is stale belongs to a superseded schedule and must not
	// emit.
	gen     uint64
	pending T
	stopped bool
}

// New creates a debouncer invoking fn with the given quiet window.
func New[T any](window time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{window: window, fn: fn}
}

// Call schedules fn(v) one window from now, replacing any pending
// invocation and its arguments.
func (d *Debouncer[T]) Call(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending = v
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen) })
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	v := d.pending
	d.timer = nil
	d.mu.Unlock()

	d.fn(v)
}

// Stop drops any pending invocation and prevents future ones.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
