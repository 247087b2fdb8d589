// Package canvas turns pointer, wheel and focus events into board operations.
package canvas

import (
	"context"
	"math"

	"github.com/Blackmamoth/collably-sub000/internal/backend"
	"github.com/Blackmamoth/collably-sub000/internal/model"
	"github.com/Blackmamoth/collably-sub000/internal/reconcile"
)

// MinDrawDistance 이보다 짧은 드래그는 실수 클릭으로 보고 버린다 (캔버스 px)
const MinDrawDistance = 10.0

// State 상호작용 상태
type State int

const (
	StateIdle State = iota
	StatePanning
	StateDrawingShape
	StateDrawingConnector
	StateDragging
	StateResizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePanning:
		return "panning"
	case StateDrawingShape:
		return "drawing-shape"
	case StateDrawingConnector:
		return "drawing-connector"
	case StateDragging:
		return "dragging-element"
	case StateResizing:
		return "resizing-element"
	}
	return "unknown"
}

// Button 포인터 버튼
type Button int

const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

// PointerEvent is one pointer event as delivered by the UI. Target is the id
// of the element under the pointer, Handle the resize handle under it.
type PointerEvent struct {
	Screen Point
	Button Button
	Target string
	Handle Handle
}

// Board is the part of the reconciliation engine the canvas drives.
type Board interface {
	Tool() reconcile.Tool
	Element(id string) (model.Element, bool)
	GroupMembers(groupID string) []model.Element
	Resolve(id string) string
	Select(id string)
	Selected() string
	BeginEdit(id string) reconcile.Result
	EndEdit(ctx context.Context) reconcile.Result
	Create(ctx context.Context, draft backend.ElementDraft) reconcile.Result
	PatchField(id string, patch model.ElementPatch) reconcile.Result
	CommitField(ctx context.Context, id string, patch model.ElementPatch) reconcile.Result
}

// CursorReporter receives the pointer position in canvas space.
type CursorReporter interface {
	UpdateCursor(c model.Cursor)
}

// Preview is the non-persisted outline shown while drawing.
type Preview struct {
	Type model.ElementType
	Box  Box
	From Point
	To   Point
}

type dragMember struct {
	id     string
	origin Point
}

// Options configures a Controller.
type Options struct {
	Board  Board
	Cursor CursorReporter
	// Go runs blocking board calls (create, commit, end edit). Defaults to a
	// new goroutine; tests pass a synchronous runner.
	Go func(func())
	// Context for blocking board calls.
	Context context.Context
}

// Controller is the canvas interaction state machine. It is driven from a
// single UI goroutine.
type Controller struct {
	board  Board
	cursor CursorReporter
	run    func(func())
	ctx    context.Context

	viewport Viewport
	state    State

	lastScreen Point
	start      Point
	preview    *Preview

	dragMembers []dragMember
	grab        Point
	moved       bool

	resizeID     string
	resizeHandle Handle
	resizeOrigin Box
}

// New creates a controller over board.
func New(opts Options) *Controller {
	if opts.Go == nil {
		opts.Go = func(fn func()) { go fn() }
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	return &Controller{
		board:    opts.Board,
		cursor:   opts.Cursor,
		run:      opts.Go,
		ctx:      opts.Context,
		viewport: NewViewport(),
	}
}

func (c *Controller) State() State       { return c.state }
func (c *Controller) Viewport() Viewport { return c.viewport }

// Preview returns the outline being drawn, if any.
func (c *Controller) Preview() (Preview, bool) {
	if c.preview == nil {
		return Preview{}, false
	}
	return *c.preview, true
}

// PointerDown starts an interaction.
func (c *Controller) PointerDown(ev PointerEvent) {
	if c.state != StateIdle {
		return
	}
	p := c.viewport.ToCanvas(ev.Screen)
	tool := c.board.Tool()

	if ev.Button == ButtonMiddle || (ev.Button == ButtonPrimary && tool == reconcile.ToolHand) {
		c.state = StatePanning
		c.lastScreen = ev.Screen
		return
	}
	if ev.Button != ButtonPrimary {
		return
	}

	switch tool {
	case reconcile.ToolRectangle, reconcile.ToolCircle:
		typ, _ := tool.ElementType()
		c.state = StateDrawingShape
		c.start = p
		c.preview = &Preview{Type: typ, Box: Box{X: p.X, Y: p.Y}, From: p, To: p}
	case reconcile.ToolArrow, reconcile.ToolLine:
		typ, _ := tool.ElementType()
		c.state = StateDrawingConnector
		c.start = p
		c.preview = &Preview{Type: typ, From: p, To: p}
	case reconcile.ToolNote, reconcile.ToolSticky, reconcile.ToolText:
		typ, _ := tool.ElementType()
		c.create(placedDraft(typ, p))
	case reconcile.ToolSelect:
		c.pointerDownSelect(ev, p)
	}
}

func (c *Controller) pointerDownSelect(ev PointerEvent, p Point) {
	if ev.Target == "" {
		c.board.Select("")
		return
	}
	el, ok := c.board.Element(ev.Target)
	if !ok {
		return
	}

	if ev.Handle.Valid() && el.ElementType.Resizable() && c.board.Selected() == el.ID {
		w, h := el.Size()
		c.state = StateResizing
		c.start = p
		c.resizeID = el.ID
		c.resizeHandle = ev.Handle
		c.resizeOrigin = Box{X: el.X, Y: el.Y, W: w, H: h}
		return
	}

	c.board.Select(el.ID)
	c.state = StateDragging
	c.start = p
	c.moved = false
	c.grab = p.Sub(Point{X: el.X, Y: el.Y})
	c.dragMembers = []dragMember{{id: el.ID, origin: Point{X: el.X, Y: el.Y}}}
	if el.GroupID != nil {
		for _, m := range c.board.GroupMembers(*el.GroupID) {
			if m.ID == el.ID {
				continue
			}
			c.dragMembers = append(c.dragMembers, dragMember{id: m.ID, origin: Point{X: m.X, Y: m.Y}})
		}
	}
}

// PointerMove advances the current interaction and always reports the
// cursor to presence.
func (c *Controller) PointerMove(ev PointerEvent) {
	p := c.viewport.ToCanvas(ev.Screen)
	if c.cursor != nil {
		c.cursor.UpdateCursor(model.Cursor{X: p.X, Y: p.Y})
	}

	switch c.state {
	case StatePanning:
		c.viewport.Pan = c.viewport.Pan.Add(ev.Screen.Sub(c.lastScreen))
		c.lastScreen = ev.Screen
	case StateDrawingShape:
		c.preview.To = p
		c.preview.Box = NormalizedBox(c.start, p)
	case StateDrawingConnector:
		c.preview.To = p
	case StateDragging:
		c.dragTo(p)
	case StateResizing:
		next := Resize(c.resizeOrigin, c.resizeHandle, p.Sub(c.start))
		c.board.PatchField(c.board.Resolve(c.resizeID), next.patch(c.resizeHandle))
	}
}

func (c *Controller) dragTo(p Point) {
	lead := c.dragMembers[0]
	target := p.Sub(c.grab)
	delta := target.Sub(lead.origin)
	if delta.X == 0 && delta.Y == 0 && !c.moved {
		return
	}
	c.moved = true
	for _, m := range c.dragMembers {
		pos := m.origin.Add(delta)
		c.board.PatchField(c.board.Resolve(m.id), model.ElementPatch{X: model.Ptr(pos.X), Y: model.Ptr(pos.Y)})
	}
}

// PointerUp finishes the current interaction.
func (c *Controller) PointerUp(ev PointerEvent) {
	p := c.viewport.ToCanvas(ev.Screen)

	switch c.state {
	case StateDrawingShape:
		c.finishShape(p)
	case StateDrawingConnector:
		c.finishConnector(p)
	case StateDragging:
		c.finishDrag()
	case StateResizing:
		c.finishResize(p)
	}
	c.reset()
}

func (c *Controller) finishShape(p Point) {
	box := NormalizedBox(c.start, p)
	if box.W < MinDrawDistance && box.H < MinDrawDistance {
		return
	}
	typ := c.preview.Type
	c.create(backend.ElementDraft{
		ElementType: typ,
		X:           box.X,
		Y:           box.Y,
		Fields: model.ElementPatch{
			Width:       model.Ptr(math.Max(box.W, model.MinShapeSize)),
			Height:      model.Ptr(math.Max(box.H, model.MinShapeSize)),
			StrokeColor: model.Ptr(model.DefaultStrokeColor),
			StrokeWidth: model.Ptr(model.DefaultStrokeWidth),
			FillColor:   model.Ptr(model.DefaultFillColor),
		},
	})
}

func (c *Controller) finishConnector(p Point) {
	if c.start.Dist(p) < MinDrawDistance {
		return
	}
	c.create(backend.ElementDraft{
		ElementType: c.preview.Type,
		X:           c.start.X,
		Y:           c.start.Y,
		Fields: model.ElementPatch{
			EndX:        model.Ptr(p.X),
			EndY:        model.Ptr(p.Y),
			StrokeColor: model.Ptr(model.DefaultStrokeColor),
			StrokeWidth: model.Ptr(model.DefaultStrokeWidth),
		},
	})
}

func (c *Controller) finishDrag() {
	if !c.moved {
		return
	}
	for _, m := range c.dragMembers {
		id := c.board.Resolve(m.id)
		el, ok := c.board.Element(id)
		if !ok {
			continue
		}
		patch := model.ElementPatch{X: model.Ptr(el.X), Y: model.Ptr(el.Y)}
		c.run(func() { c.board.CommitField(c.ctx, id, patch) })
	}
}

func (c *Controller) finishResize(p Point) {
	next := Resize(c.resizeOrigin, c.resizeHandle, p.Sub(c.start))
	if next == c.resizeOrigin {
		return
	}
	id := c.board.Resolve(c.resizeID)
	patch := model.ElementPatch{
		X:      model.Ptr(next.X),
		Y:      model.Ptr(next.Y),
		Width:  model.Ptr(next.W),
		Height: model.Ptr(next.H),
	}
	c.run(func() { c.board.CommitField(c.ctx, id, patch) })
}

func (c *Controller) reset() {
	c.state = StateIdle
	c.preview = nil
	c.dragMembers = nil
	c.moved = false
	c.resizeID = ""
	c.resizeHandle = HandleNone
}

// DoubleClick opens an edit session on a text-bearing element.
func (c *Controller) DoubleClick(ev PointerEvent) {
	if c.board.Tool() != reconcile.ToolSelect || ev.Target == "" {
		return
	}
	el, ok := c.board.Element(ev.Target)
	if !ok || !el.ElementType.TextBearing() {
		return
	}
	c.board.BeginEdit(el.ID)
}

// Blur ends the edit session and commits its content.
func (c *Controller) Blur() {
	c.run(func() { c.board.EndEdit(c.ctx) })
}

// Wheel zooms one step per notch; negative deltaY zooms in. Pan is untouched.
func (c *Controller) Wheel(deltaY float64) {
	switch {
	case deltaY < 0:
		c.viewport.ZoomBy(1)
	case deltaY > 0:
		c.viewport.ZoomBy(-1)
	}
}

func (c *Controller) create(draft backend.ElementDraft) {
	c.run(func() { c.board.Create(c.ctx, draft) })
}

// placedDraft builds the click-to-place draft for note, sticky and text.
func placedDraft(typ model.ElementType, p Point) backend.ElementDraft {
	d := backend.ElementDraft{ElementType: typ, X: p.X, Y: p.Y}
	switch typ {
	case model.ElementText:
		d.Fields = model.ElementPatch{
			Content:  model.Ptr(model.DefaultTextContent),
			FontSize: model.Ptr(model.DefaultFontSize),
		}
	default:
		d.Fields = model.ElementPatch{
			Width:   model.Ptr(model.DefaultNoteWidth),
			Height:  model.Ptr(model.DefaultNoteHeight),
			Content: model.Ptr(model.DefaultNoteContent),
			Color:   model.Ptr(model.DefaultNoteColor),
		}
	}
	return d
}
