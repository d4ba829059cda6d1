package mask

import (
	"fmt"
	"image"
	"image/color"
)

// VisualMode selects how label codes map to output pixel values.
type VisualMode int

const (
	// ModeBinary paints every annotated pixel full-intensity white. Distinct
	// class codes are not recoverable from the output.
	ModeBinary VisualMode = iota
	// ModeLabels spreads codes evenly over the 8-bit range so distinct
	// classes stay distinguishable in the output.
	ModeLabels
)

// ParseVisualMode maps a config/flag string to a VisualMode.
func ParseVisualMode(s string) (VisualMode, error) {
	switch s {
	case "binary":
		return ModeBinary, nil
	case "labels":
		return ModeLabels, nil
	default:
		return ModeBinary, fmt.Errorf("unknown visual mode %q (want binary or labels)", s)
	}
}

// ToVisual converts the label mask into a 3-channel buffer for encoding.
// numGroups is the number of non-background codes in use; ModeLabels uses it
// to spread codes over the intensity range.
func (m *Mask) ToVisual(mode VisualMode, numGroups int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))

	var lut [256]uint8
	switch mode {
	case ModeLabels:
		if numGroups < 1 {
			numGroups = 1
		}
		for c := 1; c < 256; c++ {
			v := c * 255 / numGroups
			if v > 255 {
				v = 255
			}
			lut[c] = uint8(v)
		}
	default:
		for c := 1; c < 256; c++ {
			lut[c] = 255
		}
	}

	for y := 0; y < m.Height; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x, c := range row {
			v := lut[c]
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}
