// Package slide exposes the source whole-slide image as a black box: its
// level-0 dimensions, physical resolution and descriptive metadata. Pixel
// data is never decoded.
package slide

import (
	"fmt"
	"os"
	"strconv"

	"slidemask/internal/tiff"
)

// Unit is the physical unit of the source image's resolution values.
type Unit int

const (
	UnitUnknown Unit = iota
	UnitInch
	UnitCentimeter
)

func (u Unit) String() string {
	switch u {
	case UnitInch:
		return "inch"
	case UnitCentimeter:
		return "centimeter"
	default:
		return "unknown"
	}
}

// Metadata describes the source image. Width and Height are the level-0
// pixel dimensions; resolution values are pixels per Unit and are 0 when the
// source carries no resolution tags. Description is the source's descriptive
// comment, empty when absent.
type Metadata struct {
	Width       int
	Height      int
	XResolution float64
	YResolution float64
	Unit        Unit
	Description string
	Fields      map[string]string
}

// ReadMetadata opens the source image and extracts its dimensions and
// metadata fields. The level-0 dimensions are required; everything else
// defaults when absent. Classic TIFF and BigTIFF containers of either byte
// order are supported.
func ReadMetadata(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open slide: %w", err)
	}
	defer f.Close()

	t, err := tiff.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read slide %s: %w", path, err)
	}
	ifd, err := t.ReadIFD(t.FirstIFD())
	if err != nil {
		return nil, fmt.Errorf("read slide %s: %w", path, err)
	}

	width, okW := t.Uint(ifd, tiff.TagImageWidth)
	height, okH := t.Uint(ifd, tiff.TagImageLength)
	if !okW || !okH || width == 0 || height == 0 {
		return nil, fmt.Errorf("read slide %s: missing level-0 dimensions", path)
	}

	meta := &Metadata{
		Width:  int(width),
		Height: int(height),
		// TIFF defaults the resolution unit to inches when the tag is absent.
		Unit: UnitInch,
	}

	if v, ok := t.Uint(ifd, tiff.TagResolutionUnit); ok {
		switch v {
		case tiff.ResUnitInch:
			meta.Unit = UnitInch
		case tiff.ResUnitCentimeter:
			meta.Unit = UnitCentimeter
		default:
			meta.Unit = UnitUnknown
		}
	}
	if v, ok := t.Rational(ifd, tiff.TagXResolution); ok {
		meta.XResolution = v
	}
	if v, ok := t.Rational(ifd, tiff.TagYResolution); ok {
		meta.YResolution = v
	}
	if s, ok := t.ASCII(ifd, tiff.TagImageDescription); ok {
		meta.Description = s
	}

	meta.Fields = buildFields(t, ifd, meta)
	return meta, nil
}

// buildFields collects the available metadata into a label→value map, in the
// spirit of a slide library's property list. Unavailable fields are omitted.
func buildFields(t *tiff.File, ifd *tiff.IFD, meta *Metadata) map[string]string {
	fields := map[string]string{
		"width":  strconv.Itoa(meta.Width),
		"height": strconv.Itoa(meta.Height),
	}
	if meta.XResolution > 0 {
		fields["xres"] = strconv.FormatFloat(meta.XResolution, 'f', -1, 64)
	}
	if meta.YResolution > 0 {
		fields["yres"] = strconv.FormatFloat(meta.YResolution, 'f', -1, 64)
	}
	if meta.Unit != UnitUnknown {
		fields["resolution-unit"] = meta.Unit.String()
	}
	if meta.Description != "" {
		fields["image-description"] = meta.Description
	}
	if s, ok := t.ASCII(ifd, tiff.TagSoftware); ok {
		fields["software"] = s
	}
	return fields
}
