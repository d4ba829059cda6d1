package mask

import (
	"os"
	"path/filepath"
	"testing"

	"slidemask/internal/annotation"
	"slidemask/pkg/geometry"
)

func square(x, y, size float64) annotation.Polygon {
	return annotation.Polygon{
		{X: x, Y: y},
		{X: x + size, Y: y},
		{X: x + size, Y: y + size},
		{X: x, Y: y + size},
	}
}

// registryFor builds a registry whose codes follow lexicographic label order.
func registryFor(t *testing.T, labels ...string) *annotation.Registry {
	t.Helper()
	xml := "<A>"
	for _, l := range labels {
		xml += `<Annotation PartOfGroup="` + l + `"/>`
	}
	xml += "</A>"

	path := filepath.Join(t.TempDir(), "labels.xml")
	if err := os.WriteFile(path, []byte(xml), 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := annotation.BuildRegistry([]string{path})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestRasterizeEmpty(t *testing.T) {
	reg := registryFor(t, "tumor")
	m := Rasterize(16, 16, nil, reg)
	for i, c := range m.Pix {
		if c != 0 {
			t.Fatalf("pixel %d = %d, want 0 for empty annotation list", i, c)
		}
	}
}

func TestRasterizeSquareCoverage(t *testing.T) {
	reg := registryFor(t, "tumor")
	groups := []annotation.Group{
		{Label: "tumor", Polygons: []annotation.Polygon{square(0, 0, 10)}},
	}

	m := Rasterize(20, 20, groups, reg)

	code := reg.Code("tumor")
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			want := uint8(0)
			if x < 10 && y < 10 {
				want = code
			}
			if got := m.At(x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestRasterizeNonOverlappingSameGroup(t *testing.T) {
	reg := registryFor(t, "tumor")
	groups := []annotation.Group{
		{Label: "tumor", Polygons: []annotation.Polygon{square(0, 0, 4), square(10, 10, 4)}},
	}

	m := Rasterize(20, 20, groups, reg)
	code := reg.Code("tumor")

	if m.At(2, 2) != code || m.At(12, 12) != code {
		t.Error("both polygons should be filled")
	}
	if m.At(7, 7) != 0 {
		t.Error("pixel between polygons should stay background")
	}
}

func TestRasterizeOverlapLastWriterWins(t *testing.T) {
	reg := registryFor(t, "alpha", "beta")
	groups := []annotation.Group{
		{Label: "alpha", Polygons: []annotation.Polygon{square(0, 0, 6)}},
		{Label: "beta", Polygons: []annotation.Polygon{square(4, 4, 6)}},
	}

	m := Rasterize(16, 16, groups, reg)

	if got := m.At(2, 2); got != reg.Code("alpha") {
		t.Errorf("alpha-only pixel = %d, want %d", got, reg.Code("alpha"))
	}
	if got := m.At(5, 5); got != reg.Code("beta") {
		t.Errorf("overlap pixel = %d, want beta's code %d (last writer wins)", got, reg.Code("beta"))
	}
	if got := m.At(8, 8); got != reg.Code("beta") {
		t.Errorf("beta-only pixel = %d, want %d", got, reg.Code("beta"))
	}
}

func TestRasterizeUnknownGroupIsBackground(t *testing.T) {
	reg := registryFor(t, "tumor")
	groups := []annotation.Group{
		{Label: "mystery", Polygons: []annotation.Polygon{square(0, 0, 8)}},
	}

	m := Rasterize(16, 16, groups, reg)
	if got := m.At(4, 4); got != 0 {
		t.Errorf("unknown group filled with %d, want 0", got)
	}
}

func TestFillPolygonDegenerate(t *testing.T) {
	m := New(8, 8)
	m.FillPolygon(nil, 1)
	m.FillPolygon([]geometry.Point2D{{X: 1, Y: 1}}, 1)
	m.FillPolygon([]geometry.Point2D{{X: 1, Y: 1}, {X: 5, Y: 5}}, 1)

	for i, c := range m.Pix {
		if c != 0 {
			t.Fatalf("pixel %d = %d, degenerate polygons must be a no-op", i, c)
		}
	}
}

func TestFillPolygonClipped(t *testing.T) {
	m := New(8, 8)
	m.FillPolygon(square(-4, -4, 8), 3)

	if m.At(0, 0) != 3 || m.At(3, 3) != 3 {
		t.Error("in-bounds part of clipped polygon should be filled")
	}
	if m.At(4, 4) != 0 {
		t.Error("outside the polygon should stay background")
	}
}

func TestFillPolygonTriangle(t *testing.T) {
	m := New(10, 10)
	m.FillPolygon([]geometry.Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}}, 1)

	if m.At(1, 1) != 1 {
		t.Error("point near the right-angle corner should be inside")
	}
	if m.At(8, 8) != 0 {
		t.Error("point beyond the hypotenuse should be outside")
	}
}

func TestToVisualBinary(t *testing.T) {
	m := New(4, 4)
	m.Pix[0] = 1
	m.Pix[5] = 7

	img := m.ToVisual(ModeBinary, 7)

	if c := img.RGBAAt(0, 0); c.R != 255 || c.G != 255 || c.B != 255 {
		t.Errorf("annotated pixel = %+v, want white", c)
	}
	if c := img.RGBAAt(1, 1); c.R != 255 {
		t.Errorf("code 7 pixel = %+v, want white", c)
	}
	if c := img.RGBAAt(2, 2); c.R != 0 || c.G != 0 || c.B != 0 {
		t.Errorf("background pixel = %+v, want black", c)
	}
}

func TestToVisualLabels(t *testing.T) {
	m := New(4, 1)
	m.Pix[1] = 1
	m.Pix[2] = 2
	m.Pix[3] = 3

	img := m.ToVisual(ModeLabels, 3)

	if c := img.RGBAAt(0, 0); c.R != 0 {
		t.Errorf("background = %+v, want 0", c)
	}
	if c := img.RGBAAt(1, 0); c.R != 85 {
		t.Errorf("code 1 = %d, want 85", c.R)
	}
	if c := img.RGBAAt(3, 0); c.R != 255 {
		t.Errorf("code 3 = %d, want 255", c.R)
	}
	a := img.RGBAAt(1, 0)
	b := img.RGBAAt(2, 0)
	if a.R == b.R {
		t.Error("distinct codes must stay distinguishable in labels mode")
	}
}

func TestParseVisualMode(t *testing.T) {
	if m, err := ParseVisualMode("binary"); err != nil || m != ModeBinary {
		t.Errorf("ParseVisualMode(binary) = %v, %v", m, err)
	}
	if m, err := ParseVisualMode("labels"); err != nil || m != ModeLabels {
		t.Errorf("ParseVisualMode(labels) = %v, %v", m, err)
	}
	if _, err := ParseVisualMode("rainbow"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestHistogram(t *testing.T) {
	m := New(4, 4)
	m.Pix[0] = 2
	m.Pix[1] = 2
	m.Pix[2] = 1

	h := m.Histogram()
	if h[0] != 13 || h[1] != 1 || h[2] != 2 {
		t.Errorf("histogram = bg:%d c1:%d c2:%d, want 13/1/2", h[0], h[1], h[2])
	}
}
