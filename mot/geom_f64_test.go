package mot

import (
	"image"
	"math"
	"testing"
)

const (
	eps = 0.00001
)

func TestEuclideanDistance(t *testing.T) {
	p1 := Point{X: 341, Y: 264}
	p2 := Point{X: 421, Y: 427}
	correnctAnswer := 181.57367
	answer := euclideanDistance(p1, p2)
	if math.Abs(answer-correnctAnswer) > eps {
		t.Errorf("Wrong answer: %v, correct answer: %v", answer, correnctAnswer)
	}
}

func TestRectXYXY(t *testing.T) {
	rect := NewRectXYXY(10, 20, 50, 80)
	if rect.Width != 40 || rect.Height != 60 {
		t.Errorf("Expected 40x60, got %fx%f", rect.Width, rect.Height)
	}
	x1, y1, x2, y2 := rect.XYXY()
	if x1 != 10 || y1 != 20 || x2 != 50 || y2 != 80 {
		t.Errorf("Wrong corners: %f %f %f %f", x1, y1, x2, y2)
	}
	center := rect.Center()
	if center != (Point{X: 30, Y: 50}) {
		t.Errorf("Wrong center: %v", center)
	}
	if rect.Area() != 2400 {
		t.Errorf("Wrong area: %f", rect.Area())
	}
	fromImage := NewRectFrom(image.Rect(10, 20, 50, 80))
	if fromImage != rect {
		t.Errorf("Expected %v, got %v", rect, fromImage)
	}
}

func TestRectIsValid(t *testing.T) {
	cases := []struct {
		rect  Rectangle
		valid bool
	}{
		{NewRect(0, 0, 10, 10), true},
		{NewRect(-5, -5, 1, 1), true},
		{NewRect(0, 0, 0, 10), false},
		{NewRect(0, 0, 10, -1), false},
		{NewRect(math.NaN(), 0, 10, 10), false},
		{NewRect(0, 0, math.Inf(1), 10), false},
	}
	for i, c := range cases {
		if c.rect.IsValid() != c.valid {
			t.Errorf("Case %d: expected valid=%t for %+v", i, c.valid, c.rect)
		}
	}
}

func TestPathLength(t *testing.T) {
	obj := TrackedObject{
		Trail: []Point{NewPoint(0, 0), NewPoint(3, 4), NewPoint(3, 10)},
	}
	if length := obj.PathLength(); math.Abs(length-11) > eps {
		t.Errorf("Expected path length 11, got %f", length)
	}
	if length := (TrackedObject{}).PathLength(); length != 0 {
		t.Errorf("Empty trail must have zero length, got %f", length)
	}
}
