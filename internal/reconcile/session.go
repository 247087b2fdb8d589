package reconcile

import (
	"context"

	"github.com/Blackmamoth/collably-sub000/internal/model"
)

// Tool 현재 선택된 캔버스 도구
type Tool string

const (
	ToolSelect    Tool = "select"
	ToolHand      Tool = "hand"
	ToolSticky    Tool = "sticky"
	ToolNote      Tool = "note"
	ToolText      Tool = "text"
	ToolRectangle Tool = "rectangle"
	ToolCircle    Tool = "circle"
	ToolArrow     Tool = "arrow"
	ToolLine      Tool = "line"
)

// ElementType maps a creation tool to the element it draws.
func (t Tool) ElementType() (model.ElementType, bool) {
	switch t {
	case ToolSticky:
		return model.ElementSticky, true
	case ToolNote:
		return model.ElementNote, true
	case ToolText:
		return model.ElementText, true
	case ToolRectangle:
		return model.ElementRectangle, true
	case ToolCircle:
		return model.ElementCircle, true
	case ToolArrow:
		return model.ElementArrow, true
	case ToolLine:
		return model.ElementLine, true
	}
	return "", false
}

// Drawing reports whether the tool creates elements by dragging out a shape.
func (t Tool) Drawing() bool {
	switch t {
	case ToolRectangle, ToolCircle, ToolArrow, ToolLine:
		return true
	}
	return false
}

func (e *Engine) Tool() Tool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tool
}

func (e *Engine) SetTool(t Tool) {
	e.mu.Lock()
	e.tool = t
	e.mu.Unlock()
	e.changed()
}

// Select focuses id; an empty id clears the selection.
func (e *Engine) Select(id string) {
	e.mu.Lock()
	if id != "" {
		if _, ok := e.view[id]; !ok {
			e.mu.Unlock()
			return
		}
	}
	e.selected = id
	e.mu.Unlock()
	e.changed()
}

func (e *Engine) Selected() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// Editing returns the id of the element under text edit, if any.
func (e *Engine) Editing() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editing
}

// BeginEdit opens a text edit session on a text-bearing element. A session
// still open on another element is closed and its content queued on that
// element's patch stream.
func (e *Engine) BeginEdit(id string) Result {
	e.mu.Lock()
	el, ok := e.view[id]
	if !ok {
		e.mu.Unlock()
		return skipped("edit", id, "element not found")
	}
	if !el.ElementType.TextBearing() {
		e.mu.Unlock()
		return skipped("edit", id, "element has no text")
	}
	e.handOffLocked(id)
	e.selected = id
	e.editing = id
	e.mu.Unlock()

	e.changed()
	return okResult("edit", id)
}

// handOffLocked ends an edit session open on anything but next. The content
// goes out through the debounced patch stream; a temporary element commits
// it on promotion instead. Caller holds mu.
func (e *Engine) handOffLocked(next string) {
	prev := e.editing
	if prev == "" || prev == next {
		return
	}
	e.editing = ""
	el, ok := e.view[prev]
	if !ok || model.IsTempID(prev) {
		return
	}
	patch := model.ElementPatch{Content: model.Ptr(el.ContentText())}
	versions := e.markDirty(prev, patch.Fields())
	pending, _ := e.patches.Pending(prev)
	e.patches.Call(prev, mergePending(pending, pendingPatch{patch: patch, versions: versions}))
}

// EditInput applies typed text to the element under edit. Nothing is sent
// until EndEdit.
func (e *Engine) EditInput(text string) {
	e.mu.Lock()
	el, ok := e.view[e.editing]
	if e.editing == "" || !ok {
		e.mu.Unlock()
		return
	}
	el.Content = model.Ptr(text)
	e.markDirty(el.ID, []model.Field{model.FieldContent})
	e.mu.Unlock()

	e.changed()
}

// EndEdit closes the edit session and commits the content.
func (e *Engine) EndEdit(ctx context.Context) Result {
	e.mu.Lock()
	id := e.editing
	el, ok := e.view[id]
	if id == "" || !ok {
		e.editing = ""
		e.mu.Unlock()
		return skipped("edit", id, "no edit session")
	}
	content := el.ContentText()
	e.editing = ""
	e.mu.Unlock()

	e.changed()
	return e.CommitField(ctx, id, model.ElementPatch{Content: model.Ptr(content)})
}
