package backend

import "sync"

// Feed is a latest-wins Subscription. Snapshots are full state, so a slow
// consumer only ever needs the newest one.
type Feed[T any] struct {
	ch chan T

	mu     sync.Mutex
	closed bool
	err    error
	onStop func()
}

// NewFeed creates a feed; onStop (optional) runs once when the feed closes.
func NewFeed[T any](onStop func()) *Feed[T] {
	return &Feed[T]{ch: make(chan T, 1), onStop: onStop}
}

// Publish replaces any undelivered snapshot with v.
func (f *Feed[T]) Publish(v T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	for {
		select {
		case f.ch <- v:
			return true
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

// Fail ends the feed with err.
func (f *Feed[T]) Fail(err error) {
	f.finish(err)
}

// Close ends the feed without error.
func (f *Feed[T]) Close() error {
	f.finish(nil)
	return nil
}

func (f *Feed[T]) finish(err error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.err = err
	close(f.ch)
	stop := f.onStop
	f.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (f *Feed[T]) Updates() <-chan T {
	return f.ch
}

func (f *Feed[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
