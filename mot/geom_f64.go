package mot

import (
	"image"
	"math"
)

// Rectangle is an axis-aligned box: top-left corner plus size, in pixels.
type Rectangle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func NewRect(x, y, width, height float64) Rectangle {
	return Rectangle{
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
	}
}

// NewRectXYXY builds rectangle from corners (x1, y1) and (x2, y2).
func NewRectXYXY(x1, y1, x2, y2 float64) Rectangle {
	return Rectangle{
		X:      x1,
		Y:      y1,
		Width:  x2 - x1,
		Height: y2 - y1,
	}
}

func NewRectFrom(rect image.Rectangle) Rectangle {
	return Rectangle{
		X:      float64(rect.Min.X),
		Y:      float64(rect.Min.Y),
		Width:  float64(rect.Dx()),
		Height: float64(rect.Dy()),
	}
}

// newRectCenter builds rectangle from its center and size.
func newRectCenter(cx, cy, width, height float64) Rectangle {
	return Rectangle{
		X:      cx - width/2.0,
		Y:      cy - height/2.0,
		Width:  width,
		Height: height,
	}
}

// XYXY returns corners (x1, y1, x2, y2)
func (r Rectangle) XYXY() (float64, float64, float64, float64) {
	return r.X, r.Y, r.X + r.Width, r.Y + r.Height
}

// Area returns width*height. Could be negative for malformed rectangles
func (r Rectangle) Area() float64 {
	return r.Width * r.Height
}

// Center returns rectangle's center
func (r Rectangle) Center() Point {
	return Point{
		X: r.X + r.Width/2.0,
		Y: r.Y + r.Height/2.0,
	}
}

// IsValid reports whether every field is finite and the box has positive width and height.
func (r Rectangle) IsValid() bool {
	if !isFinite(r.X) || !isFinite(r.Y) || !isFinite(r.Width) || !isFinite(r.Height) {
		return false
	}
	return r.Width > 0 && r.Height > 0
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

func NewPointFrom(point image.Point) Point {
	return Point{
		X: float64(point.X),
		Y: float64(point.Y),
	}
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(p1.X-p2.X, 2) + math.Pow(p1.Y-p2.Y, 2))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
