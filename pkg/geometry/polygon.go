package geometry

import "math"

// PolygonBounds returns the axis-aligned bounding box of a polygon.
// Returns a zero Rect for an empty polygon.
func PolygonBounds(polygon []Point2D) Rect {
	if len(polygon) == 0 {
		return Rect{}
	}

	minX, minY := polygon[0].X, polygon[0].Y
	maxX, maxY := minX, minY
	for _, p := range polygon[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// PolygonArea returns the unsigned area of a simple polygon using the
// shoelace formula. Degenerate polygons (fewer than 3 vertices) have area 0.
func PolygonArea(polygon []Point2D) float64 {
	if len(polygon) < 3 {
		return 0
	}

	sum := 0.0
	n := len(polygon)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += polygon[i].X*polygon[j].Y - polygon[j].X*polygon[i].Y
	}

	return math.Abs(sum) / 2
}

// PointInPolygon reports whether the point lies inside the polygon under the
// even-odd rule. Points exactly on an edge may resolve either way.
func PointInPolygon(p Point2D, polygon []Point2D) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	n := len(polygon)
	for i := 0; i < n; i++ {
		a := polygon[i]
		b := polygon[(i+1)%n]
		if (a.Y <= p.Y) == (b.Y <= p.Y) {
			continue
		}
		x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
		if p.X < x {
			inside = !inside
		}
	}

	return inside
}
