package slide

import (
	"fmt"

	"github.com/rs/zerolog"

	"slidemask/pkg/geometry"
)

// CoordinateUnit says what unit annotation coordinates are stored in.
type CoordinateUnit int

const (
	// CoordPixels means coordinates are already level-0 pixels.
	CoordPixels CoordinateUnit = iota
	// CoordMicrometers means coordinates are physical micrometers.
	CoordMicrometers
)

// ParseCoordinateUnit maps a config/flag string to a CoordinateUnit.
func ParseCoordinateUnit(s string) (CoordinateUnit, error) {
	switch s {
	case "pixels", "px":
		return CoordPixels, nil
	case "micrometers", "um":
		return CoordMicrometers, nil
	default:
		return CoordPixels, fmt.Errorf("unknown coordinate unit %q (want pixels or micrometers)", s)
	}
}

// Micrometers per physical resolution unit.
const (
	umPerInch       = 25400.0
	umPerCentimeter = 10000.0
)

// ScaleFactor derives the factor the annotation parser multiplies raw
// coordinates by. Pixel-space annotations always scale by (1, 1). For
// micrometer annotations the factor is the level-0 pixel size in micrometers,
// computed from the slide's resolution metadata. An unknown resolution unit
// or missing resolution values degrade to (1, 1) with a warning instead of
// failing, so the rest of a batch can still be processed.
func ScaleFactor(meta *Metadata, unit CoordinateUnit, log zerolog.Logger) geometry.Scale {
	if unit == CoordPixels {
		return geometry.Identity
	}

	if meta != nil && meta.XResolution > 0 && meta.YResolution > 0 {
		switch meta.Unit {
		case UnitInch:
			return geometry.Scale{
				X: umPerInch / meta.XResolution,
				Y: umPerInch / meta.YResolution,
			}
		case UnitCentimeter:
			return geometry.Scale{
				X: umPerCentimeter / meta.XResolution,
				Y: umPerCentimeter / meta.YResolution,
			}
		}
	}

	log.Warn().Msg("slide has no usable resolution metadata, assuming annotation units are level-0 pixels")
	return geometry.Identity
}
