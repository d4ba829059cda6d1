package convert

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"slidemask/internal/annotation"
)

// ErrNoPairs means discovery found no image with a matching annotation;
// the whole run is pointless and fails.
var ErrNoPairs = errors.New("no matching image/annotation pairs found")

// PairPaths is one matched image/annotation input.
type PairPaths struct {
	Image      string
	Annotation string
}

// FindFiles walks root and returns every file whose extension (lower-cased)
// is in exts, sorted by path.
func FindFiles(root string, exts []string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, want := range exts {
			if ext == want {
				paths = append(paths, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return paths, nil
}

// PairFiles matches images to annotations by filename stem: an annotation
// belongs to an image when its path contains the image's stem. Each
// annotation is consumed by at most one image; first match wins.
func PairFiles(images, annotations []string) []PairPaths {
	remaining := make([]string, len(annotations))
	copy(remaining, annotations)

	var pairs []PairPaths
	for _, img := range images {
		stem := strings.TrimSuffix(filepath.Base(img), filepath.Ext(img))
		for i, ann := range remaining {
			if strings.Contains(ann, stem) {
				pairs = append(pairs, PairPaths{Image: img, Annotation: ann})
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
	}
	return pairs
}

// Run converts every matched pair under the input directories, writing
// masks named "<image stem>_mask.tiff" into outputDir. The group registry is
// built over every annotation file found, so codes are consistent across the
// whole batch. Pair failures are logged and skipped; only an empty batch or
// an unreadable annotation set fails the run.
func Run(imagesDir, annotationsDir, outputDir string, opts Options, log zerolog.Logger) error {
	images, err := FindFiles(imagesDir, imageExtensions(opts))
	if err != nil {
		return err
	}
	annotations, err := FindFiles(annotationsDir, annotationExtensions(opts))
	if err != nil {
		return err
	}

	pairs := PairFiles(images, annotations)
	if len(pairs) == 0 {
		return ErrNoPairs
	}

	reg, err := annotation.BuildRegistry(annotations)
	if err != nil {
		return fmt.Errorf("build group registry: %w", err)
	}
	log.Info().
		Int("pairs", len(pairs)).
		Int("groups", reg.Len()).
		Strs("labels", reg.Labels()).
		Msg("starting batch")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	converted := 0
	for i, p := range pairs {
		stem := strings.TrimSuffix(filepath.Base(p.Image), filepath.Ext(p.Image))
		outPath := filepath.Join(outputDir, stem+"_mask")

		plog := log.With().
			Int("pair", i+1).
			Str("image", filepath.Base(p.Image)).
			Logger()

		written, err := Pair(p.Image, p.Annotation, outPath, reg, opts, plog)
		if err != nil {
			plog.Error().Err(err).Msg("pair failed, continuing with next")
			continue
		}

		size := "?"
		if fi, err := os.Stat(written); err == nil {
			size = humanize.Bytes(uint64(fi.Size()))
		}
		plog.Info().Str("output", written).Str("size", size).Msg("mask written")
		converted++
	}

	log.Info().Int("converted", converted).Int("failed", len(pairs)-converted).Msg("batch done")
	return nil
}

func imageExtensions(opts Options) []string {
	if len(opts.ImageExtensions) > 0 {
		return opts.ImageExtensions
	}
	return []string{".tiff", ".tif", ".mrxs"}
}

func annotationExtensions(opts Options) []string {
	if len(opts.AnnotationExtensions) > 0 {
		return opts.AnnotationExtensions
	}
	return []string{".xml"}
}
