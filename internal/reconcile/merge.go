package reconcile

import (
	"reflect"

	"github.com/Blackmamoth/collably-sub000/internal/model"
)

// ApplySnapshot merges a full backend snapshot into the Local View and
// reports whether anything was merged.
//
//  1. An identical snapshot with the same edit focus is a no-op.
//  2. Backend elements replace local copies, except the element under edit
//     (kept verbatim) and locally written fields the backend has not caught
//     up with.
//  3. Local elements absent from the snapshot survive only while under edit
//     or still carrying a temporary id.
func (e *Engine) ApplySnapshot(snapshot []model.Element) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	if e.haveSnapshot && e.editing == e.lastEditing && reflect.DeepEqual(snapshot, e.lastSnapshot) {
		e.mu.Unlock()
		return false
	}
	e.mergeLocked(snapshot)
	e.mu.Unlock()

	e.changed()
	return true
}

func (e *Engine) mergeLocked(snapshot []model.Element) {
	e.seq++
	next := make(map[string]*model.Element, len(snapshot))

	for i := range snapshot {
		incoming := snapshot[i]
		id := incoming.ID
		if _, gone := e.deleting[id]; gone {
			continue
		}
		local, hasLocal := e.view[id]
		if hasLocal && id == e.editing {
			next[id] = local
			continue
		}

		if v, ok := e.voted[id]; ok && v == incoming.HasVoter(e.memberID) {
			delete(e.voted, id)
		}

		merged := incoming.Clone()
		if hasLocal {
			e.overlayDirty(&merged, *local)
		} else {
			delete(e.dirty, id)
		}
		next[id] = &merged
	}

	for id, local := range e.view {
		if _, ok := next[id]; ok {
			continue
		}
		if id == e.editing || model.IsTempID(id) {
			next[id] = local
			continue
		}
		e.forget(id)
	}

	e.view = next
	e.lastSnapshot = cloneAll(snapshot)
	e.lastEditing = e.editing
	e.haveSnapshot = true
}

// overlayDirty keeps the local value of every dirty field the backend has
// not caught up with; caller holds mu.
func (e *Engine) overlayDirty(merged *model.Element, local model.Element) {
	marks := e.dirty[merged.ID]
	for f, m := range marks {
		if model.FieldEqual(local, *merged, f) || (m.confirmed && e.seq > m.confirmedSeq) {
			delete(marks, f)
			continue
		}
		model.CopyField(merged, local, f)
	}
	if len(marks) == 0 {
		delete(e.dirty, merged.ID)
	}
}

// remergeLocked replays the last snapshot, e.g. after a failed delete.
func (e *Engine) remergeLocked() {
	if !e.haveSnapshot {
		return
	}
	e.mergeLocked(e.lastSnapshot)
}

func cloneAll(in []model.Element) []model.Element {
	if in == nil {
		return nil
	}
	out := make([]model.Element, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
