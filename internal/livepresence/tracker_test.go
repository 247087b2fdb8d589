package livepresence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/assert/v2"

	"github.com/Blackmamoth/collably-sub000/internal/backend"
	"github.com/Blackmamoth/collably-sub000/internal/model"
)

type upsertCall struct {
	project string
	cursor  *model.Cursor
}

type fakePresence struct {
	feed    *backend.Feed[[]model.PresenceRecord]
	upserts chan upsertCall
	deletes chan string
}

func newFakePresence() *fakePresence {
	return &fakePresence{
		feed:    backend.NewFeed[[]model.PresenceRecord](nil),
		upserts: make(chan upsertCall, 16),
		deletes: make(chan string, 4),
	}
}

func (f *fakePresence) SubscribePresence(context.Context, string) (backend.Subscription[[]model.PresenceRecord], error) {
	if f.feed == nil {
		return nil, errors.New("not authorized")
	}
	return f.feed, nil
}

func (f *fakePresence) UpsertPresence(_ context.Context, projectID string, cursor *model.Cursor) error {
	f.upserts <- upsertCall{project: projectID, cursor: cursor}
	return nil
}

func (f *fakePresence) DeletePresence(_ context.Context, projectID string) error {
	f.deletes <- projectID
	return nil
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	var zero T
	return zero
}

func quiet[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected call: %v", v)
	case <-time.After(30 * time.Millisecond):
	}
}

func directory() model.MemberDirectory {
	return model.NewMemberDirectory([]model.Member{
		{ID: "me", Name: "Me"},
		{ID: "ana", Name: "Ana"},
		{ID: "bo", Name: "Bo"},
	})
}

func newTracker(store *fakePresence, clk *clock.Mock, me string) *Tracker {
	return New(Options{
		ProjectID: "p1",
		MemberID:  me,
		Store:     store,
		Members:   directory(),
		Clock:     clk,
	})
}

func ptr(v float64) *float64 { return &v }

func TestStalePresenceIsExcluded(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	tr := newTracker(newFakePresence(), clk, "me")

	now := clk.Now()
	tr.ApplyPresence([]model.PresenceRecord{
		{MemberID: "ana", ProjectID: "p1", LastSeen: now.Add(-10 * time.Second)},
		{MemberID: "bo", ProjectID: "p1", LastSeen: now.Add(-40 * time.Second)},
		{MemberID: "me", ProjectID: "p1", LastSeen: now},
	})

	active := tr.ActiveMembers()
	assert.Equal(t, 1, len(active))
	assert.Equal(t, "ana", active[0].MemberID)
	assert.Equal(t, "Ana", active[0].Name)
	assert.Equal(t, ColorFor("ana"), active[0].Color)
}

func TestCursorsSkipSelfStaleAndCursorless(t *testing.T) {
	clk := clock.NewMock()
	tr := newTracker(newFakePresence(), clk, "me")
	now := clk.Now()

	tr.ApplyPresence([]model.PresenceRecord{
		{MemberID: "ana", LastSeen: now, CursorX: ptr(10), CursorY: ptr(20)},
		{MemberID: "bo", LastSeen: now.Add(-time.Minute), CursorX: ptr(1), CursorY: ptr(1)},
		{MemberID: "zed", LastSeen: now},
		{MemberID: "me", LastSeen: now, CursorX: ptr(5), CursorY: ptr(5)},
	})

	cursors := tr.Cursors()
	assert.Equal(t, 1, len(cursors))
	assert.Equal(t, model.Cursor{X: 10, Y: 20}, *cursors[0].Cursor)

	// unknown members still show up, named by id
	active := tr.ActiveMembers()
	assert.Equal(t, 2, len(active))
	assert.Equal(t, "zed", active[1].Name)
}

func TestColorIsStable(t *testing.T) {
	assert.Equal(t, ColorFor("member-42"), ColorFor("member-42"))
	found := false
	for _, c := range Palette {
		if c == ColorFor("member-42") {
			found = true
		}
	}
	assert.Equal(t, true, found)
}

func TestCursorUpdatesAreDebounced(t *testing.T) {
	clk := clock.NewMock()
	store := newFakePresence()
	tr := newTracker(store, clk, "me")

	tr.UpdateCursor(model.Cursor{X: 1, Y: 1})
	clk.Add(100 * time.Millisecond)
	tr.UpdateCursor(model.Cursor{X: 2, Y: 2})
	clk.Add(100 * time.Millisecond)
	tr.UpdateCursor(model.Cursor{X: 3, Y: 4})
	quiet(t, store.upserts)

	clk.Add(DefaultCursorWait)
	got := recv(t, store.upserts)
	assert.Equal(t, model.Cursor{X: 3, Y: 4}, *got.cursor)
	quiet(t, store.upserts)
}

func TestUnknownMemberDoesNotPublish(t *testing.T) {
	clk := clock.NewMock()
	store := newFakePresence()
	tr := newTracker(store, clk, "stranger")
	assert.Equal(t, false, tr.Known())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	tr.UpdateCursor(model.Cursor{X: 1, Y: 1})
	clk.Add(time.Minute)
	quiet(t, store.upserts)

	cancel()
	recv(t, done)
	quiet(t, store.deletes)
}

func TestHeartbeatAndLeave(t *testing.T) {
	clk := clock.NewMock()
	store := newFakePresence()
	tr := newTracker(store, clk, "me")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	first := recv(t, store.upserts)
	assert.Equal(t, "p1", first.project)
	assert.Equal(t, true, first.cursor == nil)

	clk.Add(DefaultHeartbeat)
	second := recv(t, store.upserts)
	assert.Equal(t, true, second.cursor == nil)

	changed := make(chan struct{}, 1)
	tr.OnChange(func() { changed <- struct{}{} })
	store.feed.Publish([]model.PresenceRecord{{MemberID: "ana", LastSeen: clk.Now()}})
	recv(t, changed)
	assert.Equal(t, 1, len(tr.ActiveMembers()))

	cancel()
	assert.Equal(t, context.Canceled, recv(t, done))
	assert.Equal(t, "p1", recv(t, store.deletes))
}

func TestRunReportsSubscribeFailure(t *testing.T) {
	store := newFakePresence()
	store.feed = nil
	tr := newTracker(store, clock.NewMock(), "me")
	assert.NotEqual(t, nil, tr.Run(context.Background()))
}
