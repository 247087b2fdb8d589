package canvas

import "math"

const (
	MinZoom  = 0.1
	MaxZoom  = 3.0
	ZoomStep = 0.1
)

// Point is a position in screen or canvas space depending on context.
type Point struct {
	X float64
	Y float64
}

func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Dist is the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Viewport 화면 <-> 캔버스 좌표 변환 (pan 은 화면 px, zoom 은 배율)
type Viewport struct {
	Pan  Point
	Zoom float64
}

// NewViewport returns an unpanned viewport at 100%.
func NewViewport() Viewport {
	return Viewport{Zoom: 1}
}

// ToCanvas converts a screen point to canvas coordinates.
func (v Viewport) ToCanvas(screen Point) Point {
	return Point{
		X: (screen.X - v.Pan.X) / v.Zoom,
		Y: (screen.Y - v.Pan.Y) / v.Zoom,
	}
}

// ToScreen converts a canvas point to screen coordinates.
func (v Viewport) ToScreen(c Point) Point {
	return Point{
		X: c.X*v.Zoom + v.Pan.X,
		Y: c.Y*v.Zoom + v.Pan.Y,
	}
}

// ZoomBy steps the zoom by notches*ZoomStep, clamped and kept on the 0.1 grid.
func (v *Viewport) ZoomBy(notches int) {
	z := v.Zoom + float64(notches)*ZoomStep
	z = math.Round(z*10) / 10
	v.Zoom = math.Max(MinZoom, math.Min(MaxZoom, z))
}
