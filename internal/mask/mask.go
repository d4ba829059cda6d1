// Package mask rasterizes grouped polygon annotations into a label mask and
// converts the mask into an image buffer for encoding.
package mask

import (
	"math"
	"sort"

	"slidemask/internal/annotation"
	"slidemask/pkg/geometry"
)

// Mask is a level-0 label grid: one group code per pixel, row-major,
// 0 meaning background.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// New returns a mask of the given dimensions with every pixel set to the
// background code.
func New(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

// At returns the code at (x, y). Out-of-bounds reads return background.
func (m *Mask) At(x, y int) uint8 {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return 0
	}
	return m.Pix[y*m.Width+x]
}

// Rasterize fills a fresh mask with every group's polygons. Groups are
// processed in the order they appear in the slice and polygons in their
// parsed order; each fill overwrites whatever is already on the canvas, so
// on overlaps the polygon processed last wins. Labels the registry does not
// know fill with the background code, which is a no-op on a fresh canvas.
func Rasterize(width, height int, groups []annotation.Group, reg *annotation.Registry) *Mask {
	m := New(width, height)
	for _, g := range groups {
		code := reg.Code(g.Label)
		for _, poly := range g.Polygons {
			m.FillPolygon(poly, code)
		}
	}
	return m
}

// edge is one non-horizontal polygon edge prepared for scanline traversal.
type edge struct {
	yMin, yMax float64
	x          float64 // x at yMin
	dxdy       float64
}

// FillPolygon writes code into every pixel whose center lies inside the
// polygon under the even-odd rule. Degenerate polygons with fewer than three
// vertices cover no pixel centers and are a no-op.
func (m *Mask) FillPolygon(poly []geometry.Point2D, code uint8) {
	if len(poly) < 3 {
		return
	}

	edges := make([]edge, 0, len(poly))
	for i := range poly {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		if a.Y == b.Y {
			continue
		}
		if a.Y > b.Y {
			a, b = b, a
		}
		edges = append(edges, edge{
			yMin: a.Y,
			yMax: b.Y,
			x:    a.X,
			dxdy: (b.X - a.X) / (b.Y - a.Y),
		})
	}
	if len(edges) == 0 {
		return
	}

	bounds := geometry.PolygonBounds(poly)
	yStart := int(math.Floor(bounds.Y))
	yEnd := int(math.Ceil(bounds.Y + bounds.Height))
	if yStart < 0 {
		yStart = 0
	}
	if yEnd > m.Height {
		yEnd = m.Height
	}

	var xs []float64
	for y := yStart; y < yEnd; y++ {
		yc := float64(y) + 0.5

		xs = xs[:0]
		for _, e := range edges {
			if yc < e.yMin || yc >= e.yMax {
				continue
			}
			xs = append(xs, e.x+(yc-e.yMin)*e.dxdy)
		}
		if len(xs) < 2 {
			continue
		}
		sort.Float64s(xs)

		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for i := 0; i+1 < len(xs); i += 2 {
			// Pixel x is covered when its center x+0.5 lies in [xs[i], xs[i+1]).
			x0 := int(math.Ceil(xs[i] - 0.5))
			x1 := int(math.Ceil(xs[i+1]-0.5)) - 1
			if x0 < 0 {
				x0 = 0
			}
			if x1 >= m.Width {
				x1 = m.Width - 1
			}
			for x := x0; x <= x1; x++ {
				row[x] = code
			}
		}
	}
}

// Histogram returns the pixel count per code.
func (m *Mask) Histogram() [256]int {
	var h [256]int
	for _, c := range m.Pix {
		h[c]++
	}
	return h
}
