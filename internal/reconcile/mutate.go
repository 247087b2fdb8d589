package reconcile

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/Blackmamoth/collably-sub000/internal/backend"
	"github.com/Blackmamoth/collably-sub000/internal/model"
)

// NewTempID returns a fresh placeholder id.
func NewTempID() string {
	return model.TempIDPrefix + uuid.NewString()
}

// Create inserts draft optimistically under a temporary id, then swaps in
// the backend id once the insert resolves. The new element is selected,
// the tool returns to select, and text-bearing elements open for editing.
// Edits made while the id was temporary are committed after promotion.
func (e *Engine) Create(ctx context.Context, draft backend.ElementDraft) Result {
	tempID := NewTempID()
	now := e.clk.Now()
	el := draft.Element(tempID, e.projectID, e.memberID)
	el.CreatedAt, el.UpdatedAt = now, now

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return skipped("create", "", ErrClosed.Error())
	}
	e.view[tempID] = &el
	e.selected = tempID
	e.tool = ToolSelect
	if el.ElementType.TextBearing() {
		e.handOffLocked(tempID)
		e.editing = tempID
	}
	e.mu.Unlock()
	e.changed()

	id, err := e.store.InsertElement(ctx, e.projectID, draft)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		if err != nil {
			return failed("create", tempID, err)
		}
		return okResult("create", id)
	}
	if err != nil {
		e.forget(tempID)
		e.mu.Unlock()
		e.changed()

		log.Printf("[Board %s] create %s failed: %v", e.projectID, draft.ElementType, err)
		r := failed("create", tempID, err)
		e.notify(r)
		return r
	}
	followUp, present := e.promoteLocked(tempID, id)
	if !present {
		// deleted locally while the insert was in flight
		e.deleting[id] = struct{}{}
		e.forget(id)
	}
	e.mu.Unlock()
	e.changed()

	if !present {
		derr := e.store.DeleteElement(ctx, e.projectID, id)
		e.mu.Lock()
		delete(e.deleting, id)
		e.mu.Unlock()
		if derr != nil {
			r := failed("delete", id, derr)
			e.notify(r)
			return r
		}
		return okResult("create", id)
	}
	if !followUp.Empty() {
		if r := e.CommitField(ctx, id, followUp); !r.OK() {
			return r
		}
	}
	return okResult("create", id)
}

// promoteLocked rekeys tempID to id everywhere and returns the fields edited
// while the id was temporary. present is false if the placeholder was
// removed meanwhile; caller holds mu.
func (e *Engine) promoteLocked(tempID, id string) (followUp model.ElementPatch, present bool) {
	e.promoted[tempID] = id

	el, ok := e.view[tempID]
	if !ok {
		return model.ElementPatch{}, false
	}
	delete(e.view, tempID)
	el.ID = id
	e.view[id] = el

	if e.selected == tempID {
		e.selected = id
	}
	if e.editing == tempID {
		e.editing = id
	}
	if v, ok := e.voted[tempID]; ok {
		e.voted[id] = v
		delete(e.voted, tempID)
	}
	if d, ok := e.drafts[tempID]; ok {
		e.drafts[id] = d
		delete(e.drafts, tempID)
	}

	var edited []model.Field
	if marks, ok := e.dirty[tempID]; ok {
		delete(e.dirty, tempID)
		e.dirty[id] = marks
		for f := range marks {
			edited = append(edited, f)
		}
	}
	return model.PatchOf(*el, edited), true
}

// PatchField applies patch locally now and sends it after the element's
// debounce window. Used for continuous gestures (drag, resize).
func (e *Engine) PatchField(id string, patch model.ElementPatch) Result {
	e.mu.Lock()
	el, ok := e.view[id]
	if !ok || e.closed {
		e.mu.Unlock()
		return skipped("patch", id, "element not found")
	}
	patch.Apply(el)
	versions := e.markDirty(id, patch.Fields())
	temp := model.IsTempID(id)
	if !temp {
		pending, _ := e.patches.Pending(id)
		e.patches.Call(id, mergePending(pending, pendingPatch{patch: patch, versions: versions}))
	}
	e.mu.Unlock()
	e.changed()

	if temp {
		return skipped("patch", id, "element not yet created")
	}
	return okResult("patch", id)
}

// sendPatch is the debounce callback.
func (e *Engine) sendPatch(id string, p pendingPatch) {
	e.mu.Lock()
	if _, gone := e.deleting[id]; gone {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	err := e.store.PatchElement(context.Background(), e.projectID, id, p.patch)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.settle(id, p.versions, err)
	e.mu.Unlock()

	if err != nil {
		log.Printf("[Board %s] patch %s failed: %v", e.projectID, id, err)
		e.notify(failed("patch", id, err))
	}
}

// CommitField applies patch locally and sends it immediately, folding in any
// debounced patch still pending for the element. A failure is reported but
// the Local View is not rolled back.
func (e *Engine) CommitField(ctx context.Context, id string, patch model.ElementPatch) Result {
	e.mu.Lock()
	el, ok := e.view[id]
	if !ok || e.closed {
		e.mu.Unlock()
		return skipped("commit", id, "element not found")
	}
	patch.Apply(el)
	versions := e.markDirty(id, patch.Fields())
	if model.IsTempID(id) {
		e.mu.Unlock()
		e.changed()
		return skipped("commit", id, "element not yet created")
	}
	full := pendingPatch{patch: patch, versions: versions}
	if pending, has := e.patches.Pending(id); has {
		e.patches.Cancel(id)
		full = mergePending(pending, full)
	}
	e.mu.Unlock()
	e.changed()

	if full.patch.Empty() {
		return okResult("commit", id)
	}
	err := e.store.PatchElement(ctx, e.projectID, id, full.patch)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		if err != nil {
			return failed("commit", id, err)
		}
		return okResult("commit", id)
	}
	e.settle(id, full.versions, err)
	e.mu.Unlock()

	if err != nil {
		log.Printf("[Board %s] commit %s failed: %v", e.projectID, id, err)
		r := failed("commit", id, err)
		e.notify(r)
		return r
	}
	return okResult("commit", id)
}

// mergePending overlays next onto prev.
func mergePending(prev, next pendingPatch) pendingPatch {
	out := pendingPatch{
		patch:    prev.patch.Merge(next.patch),
		versions: make(map[model.Field]uint64, len(prev.versions)+len(next.versions)),
	}
	for f, v := range prev.versions {
		out.versions[f] = v
	}
	for f, v := range next.versions {
		out.versions[f] = v
	}
	return out
}

// ToggleVote flips the member's vote optimistically. On failure the exact
// prior count and flag are restored.
func (e *Engine) ToggleVote(ctx context.Context, id string) Result {
	e.mu.Lock()
	el, ok := e.view[id]
	if !ok || e.closed {
		e.mu.Unlock()
		return skipped("vote", id, "element not found")
	}
	if model.IsTempID(id) {
		e.mu.Unlock()
		return skipped("vote", id, "element not yet created")
	}
	prevVotes := el.Votes
	prevFlag, hadFlag := e.voted[id]
	voting := !e.hasVotedLocked(id)

	e.voted[id] = voting
	if voting {
		el.Votes++
	} else if el.Votes > 0 {
		el.Votes--
	}
	versions := e.markDirty(id, []model.Field{model.FieldVotes})
	e.mu.Unlock()
	e.changed()

	err := e.store.ToggleVote(ctx, e.projectID, id)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		if err != nil {
			return failed("vote", id, err)
		}
		return okResult("vote", id)
	}
	if err != nil {
		if cur, ok := e.view[id]; ok {
			cur.Votes = prevVotes
		}
		if hadFlag {
			e.voted[id] = prevFlag
		} else {
			delete(e.voted, id)
		}
		e.release(id, versions)
	} else {
		e.settle(id, versions, nil)
	}
	e.mu.Unlock()

	if err != nil {
		e.changed()
		log.Printf("[Board %s] vote %s failed: %v", e.projectID, id, err)
		r := failed("vote", id, err)
		e.notify(r)
		return r
	}
	return okResult("vote", id)
}

// AddComment bumps the comment count and clears the input optimistically.
// On failure the count goes back down and the text is restored.
func (e *Engine) AddComment(ctx context.Context, id, text string) Result {
	if strings.TrimSpace(text) == "" {
		return skipped("comment", id, "empty comment")
	}

	e.mu.Lock()
	el, ok := e.view[id]
	if !ok || e.closed {
		e.mu.Unlock()
		return skipped("comment", id, "element not found")
	}
	if model.IsTempID(id) {
		e.mu.Unlock()
		return skipped("comment", id, "element not yet created")
	}
	el.CommentCount++
	e.drafts[id] = ""
	versions := e.markDirty(id, []model.Field{model.FieldCommentCount})
	e.mu.Unlock()
	e.changed()

	err := e.store.AddComment(ctx, e.projectID, id, text)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		if err != nil {
			return failed("comment", id, err)
		}
		return okResult("comment", id)
	}
	if err != nil {
		if cur, ok := e.view[id]; ok && cur.CommentCount > 0 {
			cur.CommentCount--
		}
		e.drafts[id] = text
		e.release(id, versions)
	} else {
		e.settle(id, versions, nil)
	}
	e.mu.Unlock()

	if err != nil {
		e.changed()
		log.Printf("[Board %s] comment on %s failed: %v", e.projectID, id, err)
		r := failed("comment", id, err)
		e.notify(r)
		return r
	}
	return okResult("comment", id)
}

// Delete removes id from the Local View immediately. If the backend refuses,
// the element comes back with the next snapshot merge.
func (e *Engine) Delete(ctx context.Context, id string) Result {
	e.mu.Lock()
	if _, ok := e.view[id]; !ok || e.closed {
		e.mu.Unlock()
		return skipped("delete", id, "element not found")
	}
	e.patches.Cancel(id)
	e.forget(id)
	if model.IsTempID(id) {
		e.mu.Unlock()
		e.changed()
		return okResult("delete", id)
	}
	e.deleting[id] = struct{}{}
	e.mu.Unlock()
	e.changed()

	err := e.store.DeleteElement(ctx, e.projectID, id)

	e.mu.Lock()
	delete(e.deleting, id)
	if e.closed {
		e.mu.Unlock()
		if err != nil {
			return failed("delete", id, err)
		}
		return okResult("delete", id)
	}
	if err != nil {
		e.remergeLocked()
	}
	e.mu.Unlock()

	if err != nil {
		e.changed()
		log.Printf("[Board %s] delete %s failed: %v", e.projectID, id, err)
		r := failed("delete", id, err)
		e.notify(r)
		return r
	}
	return okResult("delete", id)
}
