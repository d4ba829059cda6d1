package convert

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"slidemask/internal/annotation"
	"slidemask/internal/mask"
	"slidemask/internal/pyramid"
	"slidemask/internal/slide"
)

const annotXML = `<?xml version="1.0"?>
<ASAP_Annotations>
  <Annotations>
    <Annotation Name="A0" Type="Polygon" PartOfGroup="tumor">
      <Coordinates>
        <Coordinate Order="0" X="0" Y="0"/>
        <Coordinate Order="1" X="10" Y="0"/>
        <Coordinate Order="2" X="10" Y="10"/>
        <Coordinate Order="3" X="0" Y="10"/>
      </Coordinates>
    </Annotation>
  </Annotations>
</ASAP_Annotations>
`

// writeSlide writes a white 20x20 pyramidal TIFF to serve as a source image.
func writeSlide(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	if _, err := pyramid.Encode(path, img, pyramid.DefaultEncodeOptions()); err != nil {
		t.Fatalf("write slide fixture: %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func defaultOptions() Options {
	return Options{
		Unit:       slide.CoordPixels,
		VisualMode: mask.ModeBinary,
		TileSize:   256,
		Quality:    75,
	}
}

func TestPairEndToEnd(t *testing.T) {
	dir := t.TempDir()
	slidePath := filepath.Join(dir, "case1.tiff")
	annotPath := filepath.Join(dir, "case1.xml")
	writeSlide(t, slidePath)
	writeFile(t, annotPath, annotXML)

	reg, err := annotation.BuildRegistry([]string{annotPath})
	if err != nil {
		t.Fatal(err)
	}

	outPath := filepath.Join(dir, "case1_mask")
	written, err := Pair(slidePath, annotPath, outPath, reg, defaultOptions(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}
	if filepath.Ext(written) != ".tiff" {
		t.Errorf("output %s should have forced .tiff suffix", written)
	}

	r, err := pyramid.Open(written)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer r.Close()

	if r.Levels[0].Width != 20 || r.Levels[0].Height != 20 {
		t.Errorf("mask dimensions = %dx%d, want the slide's 20x20", r.Levels[0].Width, r.Levels[0].Height)
	}

	decoded, err := r.DecodeLevel(0)
	if err != nil {
		t.Fatalf("decode mask: %v", err)
	}
	// The 10x10 tumor square is white, the rest black; sample well away from
	// the edge to stay clear of JPEG ringing.
	if c := decoded.RGBAAt(3, 3); c.R < 200 {
		t.Errorf("annotated pixel = %+v, want near-white", c)
	}
	if c := decoded.RGBAAt(17, 17); c.R > 60 {
		t.Errorf("background pixel = %+v, want near-black", c)
	}
}

func TestPairMissingInputs(t *testing.T) {
	dir := t.TempDir()
	slidePath := filepath.Join(dir, "s.tiff")
	annotPath := filepath.Join(dir, "s.xml")
	writeSlide(t, slidePath)
	writeFile(t, annotPath, annotXML)

	reg, err := annotation.BuildRegistry([]string{annotPath})
	if err != nil {
		t.Fatal(err)
	}
	opts := defaultOptions()

	if _, err := Pair(filepath.Join(dir, "gone.tiff"), annotPath, filepath.Join(dir, "o"), reg, opts, zerolog.Nop()); err == nil {
		t.Error("expected error for missing image")
	}
	if _, err := Pair(slidePath, filepath.Join(dir, "gone.xml"), filepath.Join(dir, "o"), reg, opts, zerolog.Nop()); err == nil {
		t.Error("expected error for missing annotation")
	}
}

func TestFindFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "a.xml"), "<A/>")
	writeFile(t, filepath.Join(sub, "b.XML"), "<A/>")
	writeFile(t, filepath.Join(dir, "c.txt"), "nope")

	got, err := FindFiles(dir, []string{".xml"})
	if err != nil {
		t.Fatalf("FindFiles: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("found %d files, want 2 (recursive, case-insensitive ext): %v", len(got), got)
	}

	if _, err := FindFiles(filepath.Join(dir, "missing"), []string{".xml"}); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestPairFiles(t *testing.T) {
	images := []string{"/data/img/case1.tiff", "/data/img/case2.tiff", "/data/img/case3.tiff"}
	annotations := []string{"/data/ann/case2_annotations.xml", "/data/ann/case1.xml"}

	pairs := PairFiles(images, annotations)
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(pairs))
	}
	if pairs[0].Image != images[0] || pairs[0].Annotation != annotations[1] {
		t.Errorf("case1 paired with %s", pairs[0].Annotation)
	}
	if pairs[1].Image != images[1] || pairs[1].Annotation != annotations[0] {
		t.Errorf("case2 paired with %s", pairs[1].Annotation)
	}
}

func TestPairFilesConsumesAnnotations(t *testing.T) {
	// "case1" is a stem of both annotation names; the first image takes the
	// first match and the second image gets the remaining one.
	images := []string{"/i/case1.tiff", "/i/case1.tiff"}
	annotations := []string{"/a/case1_a.xml", "/a/case1_b.xml"}

	pairs := PairFiles(images, annotations)
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(pairs))
	}
	if pairs[0].Annotation == pairs[1].Annotation {
		t.Error("an annotation must be consumed by at most one image")
	}
}

func TestRunIsolatesPairFailures(t *testing.T) {
	imagesDir := t.TempDir()
	annotationsDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "masks")

	writeSlide(t, filepath.Join(imagesDir, "good.tiff"))
	writeFile(t, filepath.Join(annotationsDir, "good.xml"), annotXML)

	// A broken image with a well-formed annotation: its pair fails, the
	// batch keeps going.
	writeFile(t, filepath.Join(imagesDir, "broken.tiff"), "not a slide at all")
	writeFile(t, filepath.Join(annotationsDir, "broken.xml"), annotXML)

	if err := Run(imagesDir, annotationsDir, outputDir, defaultOptions(), zerolog.Nop()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(filepath.Join(outputDir, "good_mask.tiff")); err != nil {
		t.Errorf("good pair should have produced a mask: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "broken_mask.tiff")); err == nil {
		t.Error("broken pair should not have produced a mask")
	}
}

func TestRunNoPairs(t *testing.T) {
	err := Run(t.TempDir(), t.TempDir(), t.TempDir(), defaultOptions(), zerolog.Nop())
	if !errors.Is(err, ErrNoPairs) {
		t.Errorf("Run on empty dirs = %v, want ErrNoPairs", err)
	}
}
