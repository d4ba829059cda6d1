// Package convert turns one image/annotation pair into a pyramidal mask file
// and orchestrates whole-batch runs.
package convert

import (
	"fmt"

	"github.com/rs/zerolog"

	"slidemask/internal/annotation"
	"slidemask/internal/mask"
	"slidemask/internal/pyramid"
	"slidemask/internal/slide"
	"slidemask/internal/tiff"
)

// Options carries the per-run conversion settings.
type Options struct {
	Unit       slide.CoordinateUnit
	VisualMode mask.VisualMode
	TileSize   int
	Quality    int

	// Discovery extensions; defaults apply when empty.
	ImageExtensions      []string
	AnnotationExtensions []string
}

// Pair converts a single image/annotation pair: reads the slide metadata,
// parses and scales the annotation polygons, rasterizes them with the batch
// registry's codes and encodes the result next to the slide's metadata.
// Returns the output path actually written (the encoder forces the .tiff
// suffix). The registry must be pre-built over the whole batch.
func Pair(imagePath, annotationPath, outputPath string, reg *annotation.Registry, opts Options, log zerolog.Logger) (string, error) {
	meta, err := slide.ReadMetadata(imagePath)
	if err != nil {
		return "", err
	}

	factor := slide.ScaleFactor(meta, opts.Unit, log)
	groups, err := annotation.Parse(annotationPath, factor)
	if err != nil {
		return "", err
	}

	m := mask.Rasterize(meta.Width, meta.Height, groups, reg)
	logCoverage(log, m, reg)

	visual := m.ToVisual(opts.VisualMode, reg.Len())

	enc := pyramid.EncodeOptions{
		TileSize:    opts.TileSize,
		Quality:     opts.Quality,
		Description: meta.Description,
	}
	if meta.XResolution > 0 && meta.YResolution > 0 {
		switch meta.Unit {
		case slide.UnitInch:
			enc.ResolutionUnit = tiff.ResUnitInch
		case slide.UnitCentimeter:
			enc.ResolutionUnit = tiff.ResUnitCentimeter
		}
		if enc.ResolutionUnit != 0 {
			enc.XResolution = meta.XResolution
			enc.YResolution = meta.YResolution
		}
	}

	written, err := pyramid.Encode(outputPath, visual, enc)
	if err != nil {
		return written, fmt.Errorf("write mask: %w", err)
	}
	return written, nil
}

// logCoverage reports how many pixels each group filled.
func logCoverage(log zerolog.Logger, m *mask.Mask, reg *annotation.Registry) {
	if !log.Debug().Enabled() {
		return
	}
	hist := m.Histogram()
	total := m.Width * m.Height
	for i, label := range reg.Labels() {
		n := hist[i+1]
		if n == 0 {
			continue
		}
		log.Debug().
			Str("group", label).
			Int("pixels", n).
			Float64("fraction", float64(n)/float64(total)).
			Msg("group coverage")
	}
}
