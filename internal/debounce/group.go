package debounce

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Group keeps one independent Debouncer per key, e.g. one per element id.
type Group[K comparable, T any] struct {
	clk  clock.Clock
	wait time.Duration
	fn   func(K, T)

	mu      sync.Mutex
	streams map[K]*Debouncer[T]
}

// NewGroup creates a keyed debouncer group.
func NewGroup[K comparable, T any](clk clock.Clock, wait time.Duration, fn func(K, T)) *Group[K, T] {
	if clk == nil {
		clk = clock.New()
	}
	return &Group[K, T]{
		clk:     clk,
		wait:    wait,
		fn:      fn,
		streams: make(map[K]*Debouncer[T]),
	}
}

func (g *Group[K, T]) stream(key K) *Debouncer[T] {
	g.mu.Lock()
	defer g.mu.Unlock()

	d, ok := g.streams[key]
	if !ok {
		d = New(g.clk, g.wait, func(args T) { g.fn(key, args) })
		g.streams[key] = d
	}
	return d
}

func (g *Group[K, T]) lookup(key K) (*Debouncer[T], bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.streams[key]
	return d, ok
}

// Call schedules fn(key, args) after the key's quiet period.
func (g *Group[K, T]) Call(key K, args T) {
	g.stream(key).Call(args)
}

// Pending returns the scheduled arguments for key.
func (g *Group[K, T]) Pending(key K) (T, bool) {
	if d, ok := g.lookup(key); ok {
		return d.Pending()
	}
	var zero T
	return zero, false
}

// Cancel drops key's pending call.
func (g *Group[K, T]) Cancel(key K) bool {
	if d, ok := g.lookup(key); ok {
		return d.Cancel()
	}
	return false
}

// Flush runs key's pending call now.
func (g *Group[K, T]) Flush(key K) bool {
	if d, ok := g.lookup(key); ok {
		return d.Flush()
	}
	return false
}

// CancelAll drops every pending call and forgets all keys.
func (g *Group[K, T]) CancelAll() int {
	g.mu.Lock()
	streams := g.streams
	g.streams = make(map[K]*Debouncer[T])
	g.mu.Unlock()

	dropped := 0
	for _, d := range streams {
		if d.Cancel() {
			dropped++
		}
	}
	return dropped
}

// FlushAll runs every pending call now and returns how many ran.
func (g *Group[K, T]) FlushAll() int {
	g.mu.Lock()
	streams := make([]*Debouncer[T], 0, len(g.streams))
	for _, d := range g.streams {
		streams = append(streams, d)
	}
	g.mu.Unlock()

	ran := 0
	for _, d := range streams {
		if d.Flush() {
			ran++
		}
	}
	return ran
}
