package slide

import (
	"testing"

	"github.com/rs/zerolog"

	"slidemask/pkg/geometry"
)

func TestScaleFactorPixels(t *testing.T) {
	metas := []*Metadata{
		nil,
		{XResolution: 40000, YResolution: 40000, Unit: UnitCentimeter},
		{Unit: UnitUnknown},
	}
	for _, meta := range metas {
		if got := ScaleFactor(meta, CoordPixels, zerolog.Nop()); got != geometry.Identity {
			t.Errorf("pixel-unit factor = %+v, want identity (meta %+v)", got, meta)
		}
	}
}

func TestScaleFactorCentimeter(t *testing.T) {
	meta := &Metadata{XResolution: 100, YResolution: 100, Unit: UnitCentimeter}
	got := ScaleFactor(meta, CoordMicrometers, zerolog.Nop())
	if got.X != 100 || got.Y != 100 {
		t.Errorf("factor = %+v, want (100, 100) for 100 px/cm", got)
	}
}

func TestScaleFactorInch(t *testing.T) {
	meta := &Metadata{XResolution: 25400, YResolution: 12700, Unit: UnitInch}
	got := ScaleFactor(meta, CoordMicrometers, zerolog.Nop())
	if got.X != 1 || got.Y != 2 {
		t.Errorf("factor = %+v, want (1, 2)", got)
	}
}

func TestScaleFactorFallback(t *testing.T) {
	cases := []*Metadata{
		nil,
		// No resolution values at all.
		{},
		// Missing Y resolution.
		{XResolution: 100, Unit: UnitInch},
		// Resolution present but the unit is unknown.
		{XResolution: 100, YResolution: 100, Unit: UnitUnknown},
	}
	for _, meta := range cases {
		got := ScaleFactor(meta, CoordMicrometers, zerolog.Nop())
		if got != geometry.Identity {
			t.Errorf("meta %+v: factor = %+v, want identity fallback", meta, got)
		}
	}
}

func TestParseCoordinateUnit(t *testing.T) {
	if u, err := ParseCoordinateUnit("pixels"); err != nil || u != CoordPixels {
		t.Errorf("pixels: %v, %v", u, err)
	}
	if u, err := ParseCoordinateUnit("micrometers"); err != nil || u != CoordMicrometers {
		t.Errorf("micrometers: %v, %v", u, err)
	}
	if u, err := ParseCoordinateUnit("um"); err != nil || u != CoordMicrometers {
		t.Errorf("um: %v, %v", u, err)
	}
	if _, err := ParseCoordinateUnit("furlongs"); err == nil {
		t.Error("expected error for unknown unit")
	}
}
