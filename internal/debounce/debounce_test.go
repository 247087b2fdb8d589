package debounce

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/assert/v2"
)

func waitCall[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for debounced call")
	}
	var zero T
	return zero
}

func assertNoCall[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected debounced call with %v", v)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestDebounceCoalescesToLastArgs(t *testing.T) {
	clk := clock.NewMock()
	calls := make(chan int, 16)
	d := New(clk, 250*time.Millisecond, func(n int) { calls <- n })

	for i := 1; i <= 10; i += 1 {
		d.Call(i)
		clk.Add(100 * time.Millisecond)
	}
	assertNoCall(t, calls)

	clk.Add(250 * time.Millisecond)
	assert.Equal(t, 10, waitCall(t, calls))

	clk.Add(time.Second)
	assertNoCall(t, calls)
}

func TestDebounceWaitsForQuietPeriod(t *testing.T) {
	clk := clock.NewMock()
	calls := make(chan string, 4)
	d := New(clk, 250*time.Millisecond, func(s string) { calls <- s })

	d.Call("a")
	clk.Add(249 * time.Millisecond)
	assertNoCall(t, calls)

	clk.Add(time.Millisecond)
	assert.Equal(t, "a", waitCall(t, calls))
}

func TestDebounceFiresOncePerQuietPeriod(t *testing.T) {
	clk := clock.NewMock()
	calls := make(chan int, 4)
	d := New(clk, 50*time.Millisecond, func(n int) { calls <- n })

	d.Call(1)
	clk.Add(50 * time.Millisecond)
	assert.Equal(t, 1, waitCall(t, calls))

	d.Call(2)
	d.Call(3)
	clk.Add(50 * time.Millisecond)
	assert.Equal(t, 3, waitCall(t, calls))
	assertNoCall(t, calls)
}

func TestDebounceCancel(t *testing.T) {
	clk := clock.NewMock()
	calls := make(chan int, 4)
	d := New(clk, 50*time.Millisecond, func(n int) { calls <- n })

	assert.Equal(t, false, d.Cancel())

	d.Call(7)
	_, pending := d.Pending()
	assert.Equal(t, true, pending)
	assert.Equal(t, true, d.Cancel())

	clk.Add(time.Second)
	assertNoCall(t, calls)
	_, pending = d.Pending()
	assert.Equal(t, false, pending)
}

func TestDebounceFlush(t *testing.T) {
	clk := clock.NewMock()
	var got []int
	d := New(clk, 50*time.Millisecond, func(n int) { got = append(got, n) })

	d.Call(1)
	d.Call(2)
	assert.Equal(t, true, d.Flush())
	assert.Equal(t, []int{2}, got)

	assert.Equal(t, false, d.Flush())
	clk.Add(time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, len(got))
}

func TestGroupKeysAreIndependent(t *testing.T) {
	type call struct {
		key string
		n   int
	}
	clk := clock.NewMock()
	calls := make(chan call, 8)
	g := NewGroup(clk, 100*time.Millisecond, func(key string, n int) { calls <- call{key, n} })

	g.Call("a", 1)
	g.Call("b", 1)
	g.Call("a", 2)
	clk.Add(100 * time.Millisecond)

	seen := map[string]int{}
	for i := 0; i < 2; i += 1 {
		c := waitCall(t, calls)
		seen[c.key] = c.n
	}
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, seen)
	assertNoCall(t, calls)
}

func TestGroupCancelAll(t *testing.T) {
	clk := clock.NewMock()
	calls := make(chan int, 8)
	g := NewGroup(clk, 100*time.Millisecond, func(_ string, n int) { calls <- n })

	g.Call("a", 1)
	g.Call("b", 2)
	assert.Equal(t, 2, g.CancelAll())

	clk.Add(time.Second)
	assertNoCall(t, calls)

	_, pending := g.Pending("a")
	assert.Equal(t, false, pending)
}
