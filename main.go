// Command slidemask converts whole-slide polygon annotations into pyramidal
// TIFF label masks aligned with their source images.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"slidemask/internal/config"
	"slidemask/internal/convert"
	"slidemask/internal/mask"
	"slidemask/internal/slide"
	"slidemask/internal/version"
)

func main() {
	imagesDir := flag.String("images", "", "Directory with whole-slide images")
	annotationsDir := flag.String("annotations", "", "Directory with XML annotations")
	outputDir := flag.String("out", "", "Output directory for generated masks")
	configPath := flag.String("config", "", "Optional TOML config file")
	unit := flag.String("unit", "", "Annotation coordinate unit: pixels or micrometers (overrides config)")
	mode := flag.String("mode", "", "Mask visual mode: binary or labels (overrides config)")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	if *imagesDir == "" || *annotationsDir == "" || *outputDir == "" {
		fmt.Println("Usage: slidemask -images <dir> -annotations <dir> -out <dir> [-unit pixels|micrometers] [-config file.toml]")
		os.Exit(1)
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).
		With().Timestamp().Logger()

	log.Info().Str("version", version.Version).Msg("slidemask starting")

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("bad config")
		}
	}
	if *unit != "" {
		cfg.Input.CoordinateUnit = *unit
	}
	if *mode != "" {
		cfg.Output.VisualMode = *mode
	}

	coordUnit, err := slide.ParseCoordinateUnit(cfg.Input.CoordinateUnit)
	if err != nil {
		log.Fatal().Err(err).Msg("bad coordinate unit")
	}
	visualMode, err := mask.ParseVisualMode(cfg.Output.VisualMode)
	if err != nil {
		log.Fatal().Err(err).Msg("bad visual mode")
	}

	opts := convert.Options{
		Unit:                 coordUnit,
		VisualMode:           visualMode,
		TileSize:             cfg.Output.TileSize,
		Quality:              cfg.Output.JPEGQuality,
		ImageExtensions:      cfg.Input.ImageExtensions,
		AnnotationExtensions: cfg.Input.AnnotationExtensions,
	}

	if err := convert.Run(*imagesDir, *annotationsDir, *outputDir, opts, log); err != nil {
		if errors.Is(err, convert.ErrNoPairs) {
			log.Fatal().Err(err).
				Str("images", *imagesDir).
				Str("annotations", *annotationsDir).
				Msg("nothing to convert")
		}
		log.Fatal().Err(err).Msg("batch failed")
	}
}
