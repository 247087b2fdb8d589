package canvas

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/assert/v2"

	"github.com/Blackmamoth/collably-sub000/internal/backend"
	"github.com/Blackmamoth/collably-sub000/internal/model"
	"github.com/Blackmamoth/collably-sub000/internal/reconcile"
)

type fakeStore struct {
	mu      sync.Mutex
	nextID  int
	inserts []backend.ElementDraft
	patches []model.ElementPatch
}

func (f *fakeStore) SubscribeElements(context.Context, string) (backend.Subscription[[]model.Element], error) {
	return backend.NewFeed[[]model.Element](nil), nil
}

func (f *fakeStore) InsertElement(_ context.Context, _ string, draft backend.ElementDraft) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.inserts = append(f.inserts, draft)
	return fmt.Sprintf("el-%d", f.nextID), nil
}

func (f *fakeStore) PatchElement(_ context.Context, _, _ string, patch model.ElementPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patch)
	return nil
}

func (f *fakeStore) DeleteElement(context.Context, string, string) error { return nil }
func (f *fakeStore) ToggleVote(context.Context, string, string) error   { return nil }
func (f *fakeStore) AddComment(context.Context, string, string, string) error {
	return nil
}

type cursorLog struct {
	cursors []model.Cursor
}

func (c *cursorLog) UpdateCursor(cur model.Cursor) {
	c.cursors = append(c.cursors, cur)
}

type harness struct {
	store   *fakeStore
	engine  *reconcile.Engine
	canvas  *Controller
	cursors *cursorLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := &fakeStore{}
	engine := reconcile.New(reconcile.Options{
		ProjectID: "p1",
		MemberID:  "m1",
		Store:     store,
		Clock:     clock.NewMock(),
		Notifier:  reconcile.NotifierFunc(func(r reconcile.Result) { t.Errorf("unexpected failure: %+v", r) }),
	})
	cursors := &cursorLog{}
	c := New(Options{
		Board:  engine,
		Cursor: cursors,
		Go:     func(fn func()) { fn() },
	})
	return &harness{store: store, engine: engine, canvas: c, cursors: cursors}
}

func at(x, y float64) PointerEvent {
	return PointerEvent{Screen: Point{X: x, Y: y}}
}

func on(id string, x, y float64) PointerEvent {
	return PointerEvent{Screen: Point{X: x, Y: y}, Target: id}
}

func TestNoteClickCreatesAndOpensEdit(t *testing.T) {
	h := newHarness(t)
	h.engine.SetTool(reconcile.ToolNote)

	h.canvas.PointerDown(at(100, 100))
	h.canvas.PointerUp(at(100, 100))

	assert.Equal(t, 1, len(h.store.inserts))
	assert.Equal(t, reconcile.ToolSelect, h.engine.Tool())
	el, ok := h.engine.Element("el-1")
	assert.Equal(t, true, ok)
	assert.Equal(t, model.DefaultNoteContent, el.ContentText())
	w, ht := el.Size()
	assert.Equal(t, 240.0, w)
	assert.Equal(t, 160.0, ht)
	assert.Equal(t, "el-1", h.engine.Selected())
	assert.Equal(t, "el-1", h.engine.Editing())
}

func TestShapeBelowThresholdIsDiscarded(t *testing.T) {
	h := newHarness(t)
	h.engine.SetTool(reconcile.ToolRectangle)

	h.canvas.PointerDown(at(10, 10))
	h.canvas.PointerMove(at(15, 18))
	_, drawing := h.canvas.Preview()
	assert.Equal(t, true, drawing)
	h.canvas.PointerUp(at(15, 18))

	assert.Equal(t, 0, len(h.store.inserts))
	assert.Equal(t, 0, len(h.engine.Elements()))
	_, drawing = h.canvas.Preview()
	assert.Equal(t, false, drawing)
	assert.Equal(t, StateIdle, h.canvas.State())
}

func TestShapeIsNormalizedAndClamped(t *testing.T) {
	h := newHarness(t)
	h.engine.SetTool(reconcile.ToolCircle)

	// dragged up-left; 30 px tall box is clamped to the minimum
	h.canvas.PointerDown(at(300, 200))
	h.canvas.PointerMove(at(100, 170))
	h.canvas.PointerUp(at(100, 170))

	assert.Equal(t, 1, len(h.store.inserts))
	d := h.store.inserts[0]
	assert.Equal(t, model.ElementCircle, d.ElementType)
	assert.Equal(t, 100.0, d.X)
	assert.Equal(t, 170.0, d.Y)
	assert.Equal(t, 200.0, *d.Fields.Width)
	assert.Equal(t, model.MinShapeSize, *d.Fields.Height)
}

func TestConnectorUsesEuclideanThreshold(t *testing.T) {
	h := newHarness(t)
	h.engine.SetTool(reconcile.ToolArrow)

	h.canvas.PointerDown(at(0, 0))
	h.canvas.PointerUp(at(6, 7))
	assert.Equal(t, 0, len(h.store.inserts))

	h.engine.SetTool(reconcile.ToolLine)
	h.canvas.PointerDown(at(0, 0))
	h.canvas.PointerUp(at(8, 8))
	assert.Equal(t, 1, len(h.store.inserts))

	d := h.store.inserts[0]
	assert.Equal(t, model.ElementLine, d.ElementType)
	assert.Equal(t, 8.0, *d.Fields.EndX)
	assert.Equal(t, 8.0, *d.Fields.EndY)
	assert.Equal(t, model.DefaultStrokeColor, *d.Fields.StrokeColor)
}

func TestDragPersistsOnRelease(t *testing.T) {
	h := newHarness(t)
	h.engine.SetTool(reconcile.ToolNote)
	h.canvas.PointerDown(at(100, 100))
	h.canvas.PointerUp(at(100, 100))
	h.canvas.Blur()
	h.store.patches = nil

	h.canvas.PointerDown(on("el-1", 100, 100))
	assert.Equal(t, StateDragging, h.canvas.State())
	h.canvas.PointerMove(on("el-1", 180, 140))
	h.canvas.PointerMove(on("el-1", 250, 180))

	el, _ := h.engine.Element("el-1")
	assert.Equal(t, 250.0, el.X)
	assert.Equal(t, 180.0, el.Y)
	assert.Equal(t, 0, len(h.store.patches))

	h.canvas.PointerUp(on("el-1", 250, 180))
	assert.Equal(t, 1, len(h.store.patches))
	assert.Equal(t, 250.0, *h.store.patches[0].X)
	assert.Equal(t, 180.0, *h.store.patches[0].Y)
	assert.Equal(t, StateIdle, h.canvas.State())
}

func TestDragKeepsGrabOffset(t *testing.T) {
	h := newHarness(t)
	h.engine.ApplySnapshot([]model.Element{
		{ID: "r", ElementType: model.ElementRectangle, X: 100, Y: 100, Width: model.Ptr(80.0), Height: model.Ptr(60.0)},
	})

	h.canvas.PointerDown(on("r", 120, 130))
	h.canvas.PointerMove(on("r", 121, 130))

	el, _ := h.engine.Element("r")
	assert.Equal(t, 101.0, el.X)
	assert.Equal(t, 100.0, el.Y)
}

func TestClickWithoutMoveDoesNotCommit(t *testing.T) {
	h := newHarness(t)
	h.engine.ApplySnapshot([]model.Element{
		{ID: "r", ElementType: model.ElementRectangle, X: 0, Y: 0, Width: model.Ptr(80.0), Height: model.Ptr(60.0)},
	})

	h.canvas.PointerDown(on("r", 10, 10))
	h.canvas.PointerUp(on("r", 10, 10))

	assert.Equal(t, "r", h.engine.Selected())
	assert.Equal(t, 0, len(h.store.patches))
}

func TestGroupDragMovesEveryMember(t *testing.T) {
	h := newHarness(t)
	group := model.Ptr("g1")
	h.engine.ApplySnapshot([]model.Element{
		{ID: "a", ElementType: model.ElementSticky, X: 0, Y: 0, GroupID: group},
		{ID: "b", ElementType: model.ElementSticky, X: 300, Y: 50, GroupID: group},
		{ID: "c", ElementType: model.ElementSticky, X: 600, Y: 0},
	})

	h.canvas.PointerDown(on("a", 10, 10))
	h.canvas.PointerMove(on("a", 60, 30))
	h.canvas.PointerUp(on("a", 60, 30))

	a, _ := h.engine.Element("a")
	b, _ := h.engine.Element("b")
	c, _ := h.engine.Element("c")
	assert.Equal(t, Point{X: 50, Y: 20}, Point{X: a.X, Y: a.Y})
	assert.Equal(t, Point{X: 350, Y: 70}, Point{X: b.X, Y: b.Y})
	assert.Equal(t, Point{X: 600, Y: 0}, Point{X: c.X, Y: c.Y})
	assert.Equal(t, 2, len(h.store.patches))
}

func TestResizeWestKeepsEastEdge(t *testing.T) {
	h := newHarness(t)
	h.engine.ApplySnapshot([]model.Element{
		{ID: "r", ElementType: model.ElementRectangle, X: 100, Y: 100, Width: model.Ptr(200.0), Height: model.Ptr(100.0)},
	})
	h.engine.Select("r")

	h.canvas.PointerDown(PointerEvent{Screen: Point{X: 100, Y: 150}, Target: "r", Handle: HandleW})
	assert.Equal(t, StateResizing, h.canvas.State())
	h.canvas.PointerMove(at(140, 150))

	el, _ := h.engine.Element("r")
	w, _ := el.Size()
	assert.Equal(t, 140.0, el.X)
	assert.Equal(t, 160.0, w)

	// past the floor: width stops at 50, right edge still at 300
	h.canvas.PointerMove(at(290, 150))
	el, _ = h.engine.Element("r")
	w, _ = el.Size()
	assert.Equal(t, model.MinShapeSize, w)
	assert.Equal(t, 250.0, el.X)

	h.canvas.PointerUp(at(290, 150))
	assert.Equal(t, 1, len(h.store.patches))
	assert.Equal(t, 250.0, *h.store.patches[0].X)
	assert.Equal(t, model.MinShapeSize, *h.store.patches[0].Width)
}

func TestResizeHandleIgnoredWhenNotSelected(t *testing.T) {
	h := newHarness(t)
	h.engine.ApplySnapshot([]model.Element{
		{ID: "r", ElementType: model.ElementRectangle, X: 0, Y: 0, Width: model.Ptr(100.0), Height: model.Ptr(100.0)},
	})

	h.canvas.PointerDown(PointerEvent{Screen: Point{X: 100, Y: 100}, Target: "r", Handle: HandleSE})
	assert.Equal(t, StateDragging, h.canvas.State())
}

func TestResizeAllDirections(t *testing.T) {
	origin := Box{X: 100, Y: 100, W: 200, H: 100}
	d := Point{X: 10, Y: 20}
	cases := map[Handle]Box{
		HandleE:  {X: 100, Y: 100, W: 210, H: 100},
		HandleW:  {X: 110, Y: 100, W: 190, H: 100},
		HandleS:  {X: 100, Y: 100, W: 200, H: 120},
		HandleN:  {X: 100, Y: 120, W: 200, H: 80},
		HandleSE: {X: 100, Y: 100, W: 210, H: 120},
		HandleNW: {X: 110, Y: 120, W: 190, H: 80},
		HandleNE: {X: 100, Y: 120, W: 210, H: 80},
		HandleSW: {X: 110, Y: 100, W: 190, H: 120},
	}
	for h, want := range cases {
		assert.Equal(t, want, Resize(origin, h, d))
	}
}

func TestPanWithHandAndMiddleButton(t *testing.T) {
	h := newHarness(t)
	h.engine.SetTool(reconcile.ToolHand)

	h.canvas.PointerDown(at(0, 0))
	assert.Equal(t, StatePanning, h.canvas.State())
	h.canvas.PointerMove(at(30, -20))
	h.canvas.PointerUp(at(30, -20))
	assert.Equal(t, Point{X: 30, Y: -20}, h.canvas.Viewport().Pan)

	h.engine.SetTool(reconcile.ToolRectangle)
	h.canvas.PointerDown(PointerEvent{Screen: Point{X: 0, Y: 0}, Button: ButtonMiddle})
	assert.Equal(t, StatePanning, h.canvas.State())
	h.canvas.PointerMove(at(5, 5))
	h.canvas.PointerUp(at(5, 5))
	assert.Equal(t, Point{X: 35, Y: -15}, h.canvas.Viewport().Pan)
	assert.Equal(t, 0, len(h.store.inserts))
}

func TestWheelZoomIsClamped(t *testing.T) {
	h := newHarness(t)

	h.canvas.Wheel(-1)
	assert.Equal(t, 1.1, h.canvas.Viewport().Zoom)

	for i := 0; i < 40; i++ {
		h.canvas.Wheel(-1)
	}
	assert.Equal(t, MaxZoom, h.canvas.Viewport().Zoom)

	for i := 0; i < 60; i++ {
		h.canvas.Wheel(1)
	}
	assert.Equal(t, MinZoom, h.canvas.Viewport().Zoom)
	assert.Equal(t, Point{}, h.canvas.Viewport().Pan)
}

func TestPointerMoveReportsCanvasCursor(t *testing.T) {
	h := newHarness(t)
	h.engine.SetTool(reconcile.ToolHand)
	h.canvas.PointerDown(at(0, 0))
	h.canvas.PointerMove(at(100, 50))
	h.canvas.PointerUp(at(100, 50))
	for i := 0; i < 10; i++ {
		h.canvas.Wheel(-1)
	}
	assert.Equal(t, 2.0, h.canvas.Viewport().Zoom)

	h.canvas.PointerMove(at(300, 250))

	last := h.cursors.cursors[len(h.cursors.cursors)-1]
	assert.Equal(t, model.Cursor{X: 100, Y: 100}, last)
	assert.Equal(t, 2, len(h.cursors.cursors))
}

func TestDoubleClickOpensEditAndBlurCommits(t *testing.T) {
	h := newHarness(t)
	h.engine.ApplySnapshot([]model.Element{
		{ID: "t", ElementType: model.ElementText, X: 0, Y: 0, Content: model.Ptr("hi")},
		{ID: "l", ElementType: model.ElementLine, X: 0, Y: 0, EndX: model.Ptr(50.0), EndY: model.Ptr(50.0)},
	})

	h.canvas.DoubleClick(on("l", 1, 1))
	assert.Equal(t, "", h.engine.Editing())

	h.canvas.DoubleClick(on("t", 1, 1))
	assert.Equal(t, "t", h.engine.Editing())
	assert.Equal(t, "t", h.engine.Selected())

	h.engine.EditInput("hello")
	assert.Equal(t, 0, len(h.store.patches))

	h.canvas.Blur()
	assert.Equal(t, "", h.engine.Editing())
	assert.Equal(t, 1, len(h.store.patches))
	assert.Equal(t, "hello", *h.store.patches[0].Content)
}
