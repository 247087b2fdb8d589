// Package debounce coalesces bursts of calls into a single deferred call that
// carries the arguments of the last call in the burst.
package debounce

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Debouncer delays fn until no Call has happened for wait. One Debouncer per
// logical stream; sharing one across unrelated streams would drop calls.
type Debouncer[T any] struct {
	clk  clock.Clock
	wait time.Duration
	fn   func(T)

	mu      sync.Mutex
	timer   *clock.Timer
	args    T
	pending bool
	gen     uint64
}

// New creates a debouncer. A nil clk uses the wall clock.
func New[T any](clk clock.Clock, wait time.Duration, fn func(T)) *Debouncer[T] {
	if clk == nil {
		clk = clock.New()
	}
	return &Debouncer[T]{clk: clk, wait: wait, fn: fn}
}

// Call replaces any pending call with args and restarts the quiet period.
func (d *Debouncer[T]) Call(args T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.args = args
	d.pending = true
	d.timer = d.clk.AfterFunc(d.wait, func() { d.fire(gen) })
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	// a stale timer that lost the race with Stop must not run
	if !d.pending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	args := d.take()
	d.mu.Unlock()

	d.fn(args)
}

// take clears the pending state; caller holds mu.
func (d *Debouncer[T]) take() T {
	args := d.args
	var zero T
	d.args = zero
	d.pending = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return args
}

// Cancel drops the pending call, if any, and reports whether one was dropped.
func (d *Debouncer[T]) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.pending {
		return false
	}
	d.take()
	return true
}

// Flush runs the pending call immediately on the caller's goroutine.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return false
	}
	args := d.take()
	d.mu.Unlock()

	d.fn(args)
	return true
}

// Pending returns the arguments of the scheduled call.
func (d *Debouncer[T]) Pending() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.args, d.pending
}
