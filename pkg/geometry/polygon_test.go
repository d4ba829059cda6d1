package geometry

import (
	"math"
	"testing"
)

func square(x, y, size float64) []Point2D {
	return []Point2D{
		{X: x, Y: y},
		{X: x + size, Y: y},
		{X: x + size, Y: y + size},
		{X: x, Y: y + size},
	}
}

func TestPolygonBounds(t *testing.T) {
	got := PolygonBounds(square(2, 3, 10))
	want := Rect{X: 2, Y: 3, Width: 10, Height: 10}
	if got != want {
		t.Errorf("PolygonBounds = %+v, want %+v", got, want)
	}

	if got := PolygonBounds(nil); got != (Rect{}) {
		t.Errorf("PolygonBounds(nil) = %+v, want zero rect", got)
	}
}

func TestPolygonArea(t *testing.T) {
	if got := PolygonArea(square(0, 0, 10)); math.Abs(got-100) > 1e-9 {
		t.Errorf("square area = %v, want 100", got)
	}

	tri := []Point2D{{0, 0}, {10, 0}, {0, 10}}
	if got := PolygonArea(tri); math.Abs(got-50) > 1e-9 {
		t.Errorf("triangle area = %v, want 50", got)
	}

	if got := PolygonArea([]Point2D{{0, 0}, {5, 5}}); got != 0 {
		t.Errorf("degenerate area = %v, want 0", got)
	}
}

func TestPointInPolygon(t *testing.T) {
	poly := square(0, 0, 10)

	inside := []Point2D{{5, 5}, {0.5, 0.5}, {9.5, 9.5}}
	for _, p := range inside {
		if !PointInPolygon(p, poly) {
			t.Errorf("point %+v should be inside", p)
		}
	}

	outside := []Point2D{{-1, 5}, {11, 5}, {5, -1}, {5, 11}}
	for _, p := range outside {
		if PointInPolygon(p, poly) {
			t.Errorf("point %+v should be outside", p)
		}
	}
}

func TestPointMul(t *testing.T) {
	p := Point2D{X: 3, Y: 4}.Mul(Scale{X: 2, Y: 0.5})
	if p.X != 6 || p.Y != 2 {
		t.Errorf("Mul = %+v, want (6, 2)", p)
	}
}
