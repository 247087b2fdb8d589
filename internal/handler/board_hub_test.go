package handler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/assert/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Blackmamoth/collably-sub000/internal/backend"
	"github.com/Blackmamoth/collably-sub000/internal/model"
)

type fakeSource struct {
	mu       sync.Mutex
	elements []model.Element
	presence []model.PresenceRecord
	err      error
}

func (s *fakeSource) Elements(context.Context, string) ([]model.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elements, s.err
}

func (s *fakeSource) Presence(context.Context, string) ([]model.PresenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence, s.err
}

func (s *fakeSource) setElements(els ...model.Element) {
	s.mu.Lock()
	s.elements = els
	s.mu.Unlock()
}

type fakeWriter struct {
	ch chan []byte
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{ch: make(chan []byte, 16)}
}

func (w *fakeWriter) WriteMessage(_ int, data []byte) error {
	w.ch <- data
	return nil
}

func (w *fakeWriter) next(t *testing.T) backend.Event {
	t.Helper()
	select {
	case data := <-w.ch:
		var ev backend.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("bad event %s: %v", data, err)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return backend.Event{}
}

func (w *fakeWriter) quiet(t *testing.T) {
	t.Helper()
	select {
	case data := <-w.ch:
		t.Fatalf("unexpected event %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func elementIDs(t *testing.T, ev backend.Event) []string {
	t.Helper()
	var els []model.Element
	if err := json.Unmarshal(ev.Payload, &els); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	ids := make([]string, len(els))
	for i, e := range els {
		ids[i] = e.ID
	}
	return ids
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestJoinSendsSnapshotAndChangedBroadcastsTopic(t *testing.T) {
	src := &fakeSource{elements: []model.Element{{ID: "a"}}}
	hub := NewBoardHub(src, nil)
	defer hub.Shutdown()

	elems := newFakeWriter()
	pres := newFakeWriter()
	hub.Join(context.Background(), "p1", &Subscriber{ID: "s1", MemberID: "m1", Topic: TopicElements, Conn: elems})
	hub.Join(context.Background(), "p1", &Subscriber{ID: "s2", MemberID: "m1", Topic: TopicPresence, Conn: pres})

	ev := elems.next(t)
	assert.Equal(t, backend.EventElements, ev.Type)
	assert.Equal(t, []string{"a"}, elementIDs(t, ev))
	ev = pres.next(t)
	assert.Equal(t, backend.EventPresence, ev.Type)
	assert.Equal(t, "[]", string(ev.Payload))

	src.setElements(model.Element{ID: "a"}, model.Element{ID: "b"})
	hub.Changed(context.Background(), "p1", TopicElements)

	assert.Equal(t, []string{"a", "b"}, elementIDs(t, elems.next(t)))
	pres.quiet(t)
}

func TestChangedFansOutThroughBus(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	src := &fakeSource{}
	hub := NewBoardHub(src, rdb)
	defer hub.Shutdown()

	w := newFakeWriter()
	hub.Join(context.Background(), "p1", &Subscriber{ID: "s1", Topic: TopicElements, Conn: w})
	assert.Equal(t, 0, len(elementIDs(t, w.next(t))))

	waitFor(t, func() bool {
		return mr.PubSubNumSub(elementsChannel("p1"))[elementsChannel("p1")] == 1
	})

	// 다른 서버 인스턴스에서 발생한 변경
	other := NewBoardHub(src, rdb)
	src.setElements(model.Element{ID: "x"})
	other.Changed(context.Background(), "p1", TopicElements)

	assert.Equal(t, []string{"x"}, elementIDs(t, w.next(t)))
}

func TestEmptyRoomIsRemoved(t *testing.T) {
	hub := NewBoardHub(&fakeSource{}, nil)
	w := newFakeWriter()
	room := hub.Join(context.Background(), "p1", &Subscriber{ID: "s1", Topic: TopicElements, Conn: w})
	w.next(t)

	_, ok := hub.Room("p1")
	assert.Equal(t, true, ok)

	room.RemoveSubscriber("s1")
	waitFor(t, func() bool {
		_, ok := hub.Room("p1")
		return !ok
	})
}

func TestJoinReportsLoadFailure(t *testing.T) {
	hub := NewBoardHub(&fakeSource{err: errors.New("db down")}, nil)
	defer hub.Shutdown()

	w := newFakeWriter()
	hub.Join(context.Background(), "p1", &Subscriber{ID: "s1", Topic: TopicElements, Conn: w})

	ev := w.next(t)
	assert.Equal(t, backend.EventError, ev.Type)
	assert.Equal(t, `"failed to load board"`, string(ev.Payload))
}
