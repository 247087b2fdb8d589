package canvas

import (
	"math"

	"github.com/Blackmamoth/collably-sub000/internal/model"
)

// Handle 리사이즈 핸들 방향
type Handle string

const (
	HandleNone Handle = ""
	HandleNW   Handle = "nw"
	HandleN    Handle = "n"
	HandleNE   Handle = "ne"
	HandleE    Handle = "e"
	HandleSE   Handle = "se"
	HandleS    Handle = "s"
	HandleSW   Handle = "sw"
	HandleW    Handle = "w"
)

func (h Handle) west() bool  { return h == HandleNW || h == HandleW || h == HandleSW }
func (h Handle) east() bool  { return h == HandleNE || h == HandleE || h == HandleSE }
func (h Handle) north() bool { return h == HandleNW || h == HandleN || h == HandleNE }
func (h Handle) south() bool { return h == HandleSW || h == HandleS || h == HandleSE }

// Valid reports whether h is one of the eight compass handles.
func (h Handle) Valid() bool {
	return h.west() || h.east() || h.north() || h.south()
}

// Box is an axis-aligned rectangle in canvas space.
type Box struct {
	X, Y, W, H float64
}

// NormalizedBox returns the box spanned by a and b with X,Y at the top-left.
func NormalizedBox(a, b Point) Box {
	return Box{
		X: math.Min(a.X, b.X),
		Y: math.Min(a.Y, b.Y),
		W: math.Abs(b.X - a.X),
		H: math.Abs(b.Y - a.Y),
	}
}

// Resize moves the edges named by h by delta. Width and height never drop
// below MinShapeSize; a west or north edge moves while the opposite edge
// stays put.
func Resize(b Box, h Handle, delta Point) Box {
	out := b
	switch {
	case h.east():
		out.W = math.Max(model.MinShapeSize, b.W+delta.X)
	case h.west():
		out.W = math.Max(model.MinShapeSize, b.W-delta.X)
		out.X = b.X + b.W - out.W
	}
	switch {
	case h.south():
		out.H = math.Max(model.MinShapeSize, b.H+delta.Y)
	case h.north():
		out.H = math.Max(model.MinShapeSize, b.H-delta.Y)
		out.Y = b.Y + b.H - out.H
	}
	return out
}

// patch renders the fields of next that the handle can change.
func (b Box) patch(h Handle) model.ElementPatch {
	var p model.ElementPatch
	if h.east() || h.west() {
		p.Width = model.Ptr(b.W)
	}
	if h.west() {
		p.X = model.Ptr(b.X)
	}
	if h.north() || h.south() {
		p.Height = model.Ptr(b.H)
	}
	if h.north() {
		p.Y = model.Ptr(b.Y)
	}
	return p
}
