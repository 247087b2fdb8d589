// Package reconcile keeps the client's Local View of a board consistent with
// the backend's live snapshots while applying the user's own edits
// optimistically.
package reconcile

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Blackmamoth/collably-sub000/internal/backend"
	"github.com/Blackmamoth/collably-sub000/internal/debounce"
	"github.com/Blackmamoth/collably-sub000/internal/model"
)

// DefaultPatchWait 드래그/리사이즈 패치 디바운스 간격
const DefaultPatchWait = 300 * time.Millisecond

// Options configures an Engine.
type Options struct {
	ProjectID string
	MemberID  string
	Store     backend.ElementStore
	Notifier  Notifier
	Clock     clock.Clock
	PatchWait time.Duration
}

// dirtyMark tracks one locally written field that the backend has not yet
// been seen to agree with.
type dirtyMark struct {
	version      uint64
	confirmed    bool
	confirmedSeq uint64
}

// pendingPatch is the debounced payload for one element.
type pendingPatch struct {
	patch    model.ElementPatch
	versions map[model.Field]uint64
}

// Engine owns the Local View. All state lives behind mu; backend calls are
// never made while holding it.
type Engine struct {
	projectID string
	memberID  string
	store     backend.ElementStore
	notifier  Notifier
	clk       clock.Clock
	patches   *debounce.Group[string, pendingPatch]

	mu       sync.Mutex
	view     map[string]*model.Element
	dirty    map[string]map[model.Field]*dirtyMark
	deleting map[string]struct{}
	voted    map[string]bool
	drafts   map[string]string
	promoted map[string]string

	tool     Tool
	selected string
	editing  string

	lastSnapshot []model.Element
	lastEditing  string
	haveSnapshot bool
	seq          uint64
	version      uint64
	closed       bool

	listeners []func()
}

// New creates an engine for one project and one signed-in member.
func New(opts Options) *Engine {
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.PatchWait <= 0 {
		opts.PatchWait = DefaultPatchWait
	}

	e := &Engine{
		projectID: opts.ProjectID,
		memberID:  opts.MemberID,
		store:     opts.Store,
		notifier:  opts.Notifier,
		clk:       opts.Clock,
		view:      make(map[string]*model.Element),
		dirty:     make(map[string]map[model.Field]*dirtyMark),
		deleting:  make(map[string]struct{}),
		voted:     make(map[string]bool),
		drafts:    make(map[string]string),
		promoted:  make(map[string]string),
		tool:      ToolSelect,
	}
	e.patches = debounce.NewGroup(opts.Clock, opts.PatchWait, e.sendPatch)
	return e
}

func (e *Engine) ProjectID() string { return e.projectID }
func (e *Engine) MemberID() string  { return e.memberID }

// OnChange registers fn to run (outside the engine lock) after every change
// to the Local View or session state.
func (e *Engine) OnChange(fn func()) {
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

func (e *Engine) changed() {
	e.mu.Lock()
	fns := append([]func(){}, e.listeners...)
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (e *Engine) notify(r Result) {
	if r.Status == StatusRejected || r.Status == StatusFailed {
		e.notifier.Notify(r)
	}
}

// Run subscribes to the project's elements and merges every snapshot until
// ctx ends or the subscription fails. A subscribe error means the board
// could not be loaded.
func (e *Engine) Run(ctx context.Context) error {
	sub, err := e.store.SubscribeElements(ctx, e.projectID)
	if err != nil {
		log.Printf("[Board %s] subscribe failed: %v", e.projectID, err)
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-sub.Updates():
			if !ok {
				return sub.Err()
			}
			e.ApplySnapshot(snap)
		}
	}
}

// Close flushes pending debounced patches and stops reacting to results.
// Calls still in flight finish but no longer touch the Local View.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	if n := e.patches.FlushAll(); n > 0 {
		log.Printf("[Board %s] flushed %d pending patches on close", e.projectID, n)
	}
}

// Elements returns the Local View ordered by creation time.
func (e *Engine) Elements() []model.Element {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.Element, 0, len(e.view))
	for _, el := range e.view {
		out = append(out, el.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Element returns a copy of one element from the Local View.
func (e *Engine) Element(id string) (model.Element, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	el, ok := e.view[id]
	if !ok {
		return model.Element{}, false
	}
	return el.Clone(), true
}

// GroupMembers returns every element sharing groupID.
func (e *Engine) GroupMembers(groupID string) []model.Element {
	if groupID == "" {
		return nil
	}
	var out []model.Element
	for _, el := range e.Elements() {
		if el.GroupID != nil && *el.GroupID == groupID {
			out = append(out, el)
		}
	}
	return out
}

// Resolve maps a temporary id that has since been promoted to its real id.
func (e *Engine) Resolve(id string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if real, ok := e.promoted[id]; ok {
		return real
	}
	return id
}

// HasVoted reports whether the member has voted on id: the local optimistic
// flag until a snapshot's voter list agrees with it, otherwise the backend's
// voter list.
func (e *Engine) HasVoted(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasVotedLocked(id)
}

func (e *Engine) hasVotedLocked(id string) bool {
	if v, ok := e.voted[id]; ok {
		return v
	}
	if el, ok := e.view[id]; ok {
		return el.HasVoter(e.memberID)
	}
	return false
}

// SetCommentDraft stores the comment input for id.
func (e *Engine) SetCommentDraft(id, text string) {
	e.mu.Lock()
	e.drafts[id] = text
	e.mu.Unlock()
}

func (e *Engine) CommentDraft(id string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drafts[id]
}

// markDirty stamps fields of id with a fresh version; caller holds mu.
func (e *Engine) markDirty(id string, fields []model.Field) map[model.Field]uint64 {
	marks, ok := e.dirty[id]
	if !ok {
		marks = make(map[model.Field]*dirtyMark)
		e.dirty[id] = marks
	}
	versions := make(map[model.Field]uint64, len(fields))
	for _, f := range fields {
		e.version++
		marks[f] = &dirtyMark{version: e.version}
		versions[f] = e.version
	}
	return versions
}

// settle records the outcome of a write; caller holds mu. On success the
// marks become confirmed, so the next snapshot may overwrite them. On
// failure they stay unconfirmed and keep the local value until the backend
// echoes it or a later write lands. Marks rewritten since the write was
// issued are left alone.
func (e *Engine) settle(id string, versions map[model.Field]uint64, err error) {
	marks := e.dirty[id]
	if marks == nil {
		return
	}
	for f, v := range versions {
		m, ok := marks[f]
		if !ok || m.version != v {
			continue
		}
		if err != nil {
			m.confirmed = false
			continue
		}
		m.confirmed = true
		m.confirmedSeq = e.seq
	}
}

// release drops the marks of a write whose optimistic change was rolled
// back, so the next snapshot reconciles; caller holds mu.
func (e *Engine) release(id string, versions map[model.Field]uint64) {
	marks := e.dirty[id]
	if marks == nil {
		return
	}
	for f, v := range versions {
		if m, ok := marks[f]; ok && m.version == v {
			delete(marks, f)
		}
	}
	if len(marks) == 0 {
		delete(e.dirty, id)
	}
}

// forget drops all per-element bookkeeping; caller holds mu.
func (e *Engine) forget(id string) {
	delete(e.view, id)
	delete(e.dirty, id)
	delete(e.voted, id)
	delete(e.drafts, id)
	if e.selected == id {
		e.selected = ""
	}
	if e.editing == id {
		e.editing = ""
	}
}
