package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/go-playground/assert/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Blackmamoth/collably-sub000/internal/model"
)

func setupTestRedis(t *testing.T) (*Manager, *miniredis.Miniredis, *clock.Mock) {
	s := miniredis.RunT(t)
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	m := NewManagerWithClient(client, time.Minute, clk)
	t.Cleanup(func() { m.Close() })
	return m, s, clk
}

func TestUpsertKeepsCursorOnHeartbeat(t *testing.T) {
	m, _, clk := setupTestRedis(t)
	ctx := context.Background()

	first, err := m.Upsert(ctx, "p1", "ana", &model.Cursor{X: 10, Y: 20})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	clk.Add(15 * time.Second)
	rec, err := m.Upsert(ctx, "p1", "ana", nil)
	if err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}

	assert.Equal(t, 10.0, *rec.CursorX)
	assert.Equal(t, 20.0, *rec.CursorY)
	assert.Equal(t, first.CreatedAt, rec.CreatedAt)
	assert.Equal(t, clk.Now().UTC(), rec.LastSeen)
}

func TestListAndRemove(t *testing.T) {
	m, _, _ := setupTestRedis(t)
	ctx := context.Background()

	for _, id := range []string{"bo", "ana"} {
		if _, err := m.Upsert(ctx, "p1", id, nil); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}
	if _, err := m.Upsert(ctx, "p2", "cy", nil); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	rows, err := m.List(ctx, "p1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	assert.Equal(t, 2, len(rows))
	assert.Equal(t, "ana", rows[0].MemberID)
	assert.Equal(t, true, rows[0].CursorX == nil)

	if err := m.Remove(ctx, "p1", "ana"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	rows, _ = m.List(ctx, "p1")
	assert.Equal(t, 1, len(rows))
	assert.Equal(t, "bo", rows[0].MemberID)
}

func TestProjectHashExpires(t *testing.T) {
	m, s, _ := setupTestRedis(t)
	ctx := context.Background()

	if _, err := m.Upsert(ctx, "p1", "ana", nil); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	assert.Equal(t, time.Minute, s.TTL("presence:project:p1"))

	s.FastForward(2 * time.Minute)
	rows, err := m.List(ctx, "p1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	assert.Equal(t, 0, len(rows))
}

func TestUpsertPublishesChange(t *testing.T) {
	m, _, _ := setupTestRedis(t)
	ctx := context.Background()

	sub := m.Subscribe(ctx, "p1")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if _, err := m.Upsert(ctx, "p1", "ana", &model.Cursor{X: 1, Y: 2}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, Channel("p1"), msg.Channel)
		assert.Equal(t, "ana", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("no presence message published")
	}
}
