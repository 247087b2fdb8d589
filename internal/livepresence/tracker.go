// Package livepresence publishes this client's presence on a board and
// projects everyone else's presence rows into avatars and live cursors.
package livepresence

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cespare/xxhash/v2"

	"github.com/Blackmamoth/collably-sub000/internal/backend"
	"github.com/Blackmamoth/collably-sub000/internal/debounce"
	"github.com/Blackmamoth/collably-sub000/internal/model"
)

const (
	DefaultHeartbeat  = 15 * time.Second
	DefaultCursorWait = 250 * time.Millisecond
	DefaultStaleAfter = 30 * time.Second
)

// Palette 멤버 표시 색상 (멤버 id 해시로 고정 선택)
var Palette = []string{
	"#ef4444", "#f97316", "#eab308", "#22c55e",
	"#14b8a6", "#3b82f6", "#8b5cf6", "#ec4899",
}

// ColorFor returns the member's stable display colour.
func ColorFor(memberID string) string {
	return Palette[xxhash.Sum64String(memberID)%uint64(len(Palette))]
}

// Peer is another member present on the board.
type Peer struct {
	MemberID  string
	Name      string
	AvatarURL *string
	Color     string
	Cursor    *model.Cursor
	LastSeen  time.Time
}

// Options configures a Tracker.
type Options struct {
	ProjectID  string
	MemberID   string
	Store      backend.PresenceStore
	Members    model.MemberDirectory
	Clock      clock.Clock
	Heartbeat  time.Duration
	CursorWait time.Duration
	StaleAfter time.Duration
}

// Tracker 보드 접속 상태 (heartbeat + 커서 + 다른 멤버 투영)
type Tracker struct {
	projectID  string
	memberID   string
	store      backend.PresenceStore
	members    model.MemberDirectory
	clk        clock.Clock
	heartbeat  time.Duration
	staleAfter time.Duration
	cursor     *debounce.Debouncer[model.Cursor]

	mu        sync.RWMutex
	rows      []model.PresenceRecord
	listeners []func()
}

// New creates a tracker for one member on one project.
func New(opts Options) *Tracker {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.CursorWait <= 0 {
		opts.CursorWait = DefaultCursorWait
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}

	t := &Tracker{
		projectID:  opts.ProjectID,
		memberID:   opts.MemberID,
		store:      opts.Store,
		members:    opts.Members,
		clk:        opts.Clock,
		heartbeat:  opts.Heartbeat,
		staleAfter: opts.StaleAfter,
	}
	t.cursor = debounce.New(opts.Clock, opts.CursorWait, t.sendCursor)
	return t
}

// Known reports whether the signed-in member belongs to the workspace.
// Unknown members neither heartbeat nor report a cursor.
func (t *Tracker) Known() bool {
	_, ok := t.members.Lookup(t.memberID)
	return ok
}

// OnChange registers fn to run after every presence update.
func (t *Tracker) OnChange(fn func()) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// Run publishes presence and consumes the project's presence stream until
// ctx ends. On the way out the member's row is deleted.
func (t *Tracker) Run(ctx context.Context) error {
	sub, err := t.store.SubscribePresence(ctx, t.projectID)
	if err != nil {
		return err
	}
	defer sub.Close()

	var wg sync.WaitGroup
	if t.Known() {
		ticker := t.clk.Ticker(t.heartbeat)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer ticker.Stop()
			t.touch(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					t.touch(ctx)
				}
			}
		}()
	}
	defer func() {
		wg.Wait()
		t.leave(context.WithoutCancel(ctx))
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rows, ok := <-sub.Updates():
			if !ok {
				return sub.Err()
			}
			t.ApplyPresence(rows)
		}
	}
}

func (t *Tracker) touch(ctx context.Context) {
	if err := t.store.UpsertPresence(ctx, t.projectID, nil); err != nil && ctx.Err() == nil {
		log.Printf("[Presence %s] heartbeat failed: %v", t.projectID, err)
	}
}

func (t *Tracker) leave(ctx context.Context) {
	t.cursor.Cancel()
	if !t.Known() {
		return
	}
	if err := t.store.DeletePresence(ctx, t.projectID); err != nil {
		log.Printf("[Presence %s] delete failed: %v", t.projectID, err)
	}
}

// UpdateCursor reports the pointer position; sent after a quiet period.
func (t *Tracker) UpdateCursor(c model.Cursor) {
	if !t.Known() {
		return
	}
	t.cursor.Call(c)
}

func (t *Tracker) sendCursor(c model.Cursor) {
	if err := t.store.UpsertPresence(context.Background(), t.projectID, &c); err != nil {
		log.Printf("[Presence %s] cursor update failed: %v", t.projectID, err)
	}
}

// ApplyPresence replaces the known rows, dropping the member's own.
func (t *Tracker) ApplyPresence(rows []model.PresenceRecord) {
	others := make([]model.PresenceRecord, 0, len(rows))
	for _, r := range rows {
		if r.MemberID == t.memberID {
			continue
		}
		others = append(others, r)
	}

	t.mu.Lock()
	t.rows = others
	fns := append([]func(){}, t.listeners...)
	t.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// ActiveMembers lists other members seen within the staleness window.
func (t *Tracker) ActiveMembers() []Peer {
	return t.project(func(model.PresenceRecord) bool { return true })
}

// Cursors lists fresh peers that have reported a cursor position.
func (t *Tracker) Cursors() []Peer {
	return t.project(func(r model.PresenceRecord) bool {
		return r.CursorX != nil && r.CursorY != nil
	})
}

func (t *Tracker) project(keep func(model.PresenceRecord) bool) []Peer {
	now := t.clk.Now()

	t.mu.RLock()
	defer t.mu.RUnlock()

	peers := make([]Peer, 0, len(t.rows))
	for _, r := range t.rows {
		if !r.Fresh(now, t.staleAfter) || !keep(r) {
			continue
		}
		peers = append(peers, t.peer(r))
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].MemberID < peers[j].MemberID })
	return peers
}

func (t *Tracker) peer(r model.PresenceRecord) Peer {
	p := Peer{
		MemberID: r.MemberID,
		Name:     r.MemberID,
		Color:    ColorFor(r.MemberID),
		LastSeen: r.LastSeen,
	}
	if m, ok := t.members.Lookup(r.MemberID); ok {
		p.Name = m.Name
		p.AvatarURL = m.AvatarURL
	}
	if r.CursorX != nil && r.CursorY != nil {
		p.Cursor = &model.Cursor{X: *r.CursorX, Y: *r.CursorY}
	}
	return p
}
