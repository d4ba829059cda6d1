// Package config holds the run configuration for batch mask generation,
// loadable from a TOML file with sensible defaults.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the full run configuration.
type Config struct {
	Input  Input  `toml:"input"`
	Output Output `toml:"output"`
}

// Input configures discovery and interpretation of the source files.
type Input struct {
	// ImageExtensions lists the whole-slide image extensions to pick up.
	ImageExtensions []string `toml:"image_extensions"`
	// AnnotationExtensions lists the annotation file extensions to pick up.
	AnnotationExtensions []string `toml:"annotation_extensions"`
	// CoordinateUnit is "pixels" or "micrometers".
	CoordinateUnit string `toml:"coordinate_unit"`
}

// Output configures the produced masks.
type Output struct {
	TileSize    int `toml:"tile_size"`
	JPEGQuality int `toml:"jpeg_quality"`
	// VisualMode is "binary" or "labels".
	VisualMode string `toml:"visual_mode"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Input: Input{
			ImageExtensions:      []string{".tiff", ".tif", ".mrxs"},
			AnnotationExtensions: []string{".xml"},
			CoordinateUnit:       "pixels",
		},
		Output: Output{
			TileSize:    256,
			JPEGQuality: 75,
			VisualMode:  "binary",
		},
	}
}

// Load reads a TOML config file over the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return c, fmt.Errorf("load config %s: %w", path, err)
	}
	return c, nil
}
