package pyramid

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	xdraw "golang.org/x/image/draw"

	"slidemask/internal/tiff"
)

// maxLevels bounds the IFD chain walk against malformed files.
const maxLevels = 64

// Level describes one resolution level of an opened pyramid.
type Level struct {
	Width       int
	Height      int
	TileWidth   int
	TileHeight  int
	Reduced     bool
	Compression int

	tileOffsets []uint64
	byteCounts  []uint64
}

// TilesAcross returns the number of tile columns.
func (l *Level) TilesAcross() int { return (l.Width + l.TileWidth - 1) / l.TileWidth }

// TilesDown returns the number of tile rows.
func (l *Level) TilesDown() int { return (l.Height + l.TileHeight - 1) / l.TileHeight }

// Reader provides access to a tiled pyramidal TIFF written by Encode.
type Reader struct {
	Levels      []Level
	Description string

	f *os.File
}

// Open reads the level structure of a pyramidal TIFF.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pyramid: %w", err)
	}

	r := &Reader{f: f}
	if err := r.readStructure(); err != nil {
		f.Close()
		return nil, fmt.Errorf("read pyramid %s: %w", path, err)
	}
	return r, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

func (r *Reader) readStructure() error {
	t, err := tiff.Parse(r.f)
	if err != nil {
		return err
	}

	offset := t.FirstIFD()
	for offset != 0 {
		if len(r.Levels) >= maxLevels {
			return fmt.Errorf("IFD chain longer than %d levels", maxLevels)
		}
		ifd, err := t.ReadIFD(offset)
		if err != nil {
			return err
		}

		lv, err := readLevel(t, ifd)
		if err != nil {
			return fmt.Errorf("level %d: %w", len(r.Levels), err)
		}
		if len(r.Levels) == 0 {
			if desc, ok := t.ASCII(ifd, tiff.TagImageDescription); ok {
				r.Description = desc
			}
		}
		r.Levels = append(r.Levels, lv)
		offset = ifd.Next
	}

	if len(r.Levels) == 0 {
		return fmt.Errorf("no image directories")
	}
	return nil
}

func readLevel(t *tiff.File, ifd *tiff.IFD) (Level, error) {
	var lv Level

	width, okW := t.Uint(ifd, tiff.TagImageWidth)
	height, okH := t.Uint(ifd, tiff.TagImageLength)
	if !okW || !okH {
		return lv, fmt.Errorf("missing dimensions")
	}
	lv.Width = int(width)
	lv.Height = int(height)

	tw, okTW := t.Uint(ifd, tiff.TagTileWidth)
	th, okTH := t.Uint(ifd, tiff.TagTileLength)
	if !okTW || !okTH {
		return lv, fmt.Errorf("not a tiled image")
	}
	lv.TileWidth = int(tw)
	lv.TileHeight = int(th)

	if v, ok := t.Uint(ifd, tiff.TagNewSubfileType); ok {
		lv.Reduced = v&1 != 0
	}
	if v, ok := t.Uint(ifd, tiff.TagCompression); ok {
		lv.Compression = int(v)
	}

	var err error
	lv.tileOffsets, err = t.Uints(ifd, tiff.TagTileOffsets)
	if err != nil {
		return lv, err
	}
	lv.byteCounts, err = t.Uints(ifd, tiff.TagTileByteCounts)
	if err != nil {
		return lv, err
	}

	want := lv.TilesAcross() * lv.TilesDown()
	if len(lv.tileOffsets) != want || len(lv.byteCounts) != want {
		return lv, fmt.Errorf("tile table has %d/%d entries, want %d",
			len(lv.tileOffsets), len(lv.byteCounts), want)
	}
	return lv, nil
}

// DecodeTile decodes the JPEG stream of one tile. The returned image is
// always the full padded tile size; edge tiles must be clipped by the caller.
func (r *Reader) DecodeTile(level, tx, ty int) (image.Image, error) {
	if level < 0 || level >= len(r.Levels) {
		return nil, fmt.Errorf("level %d out of range", level)
	}
	lv := &r.Levels[level]
	if lv.Compression != tiff.CompressionJPEG {
		return nil, fmt.Errorf("level %d: unsupported compression %d", level, lv.Compression)
	}
	if tx < 0 || tx >= lv.TilesAcross() || ty < 0 || ty >= lv.TilesDown() {
		return nil, fmt.Errorf("tile (%d,%d) out of range", tx, ty)
	}

	i := ty*lv.TilesAcross() + tx
	buf := make([]byte, lv.byteCounts[i])
	if _, err := r.f.ReadAt(buf, int64(lv.tileOffsets[i])); err != nil {
		return nil, fmt.Errorf("read tile (%d,%d): %w", tx, ty, err)
	}

	img, err := jpeg.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode tile (%d,%d): %w", tx, ty, err)
	}
	return img, nil
}

// DecodeLevel assembles every tile of one level into a single image, clipped
// to the level's true dimensions.
func (r *Reader) DecodeLevel(level int) (*image.RGBA, error) {
	if level < 0 || level >= len(r.Levels) {
		return nil, fmt.Errorf("level %d out of range", level)
	}
	lv := &r.Levels[level]

	out := image.NewRGBA(image.Rect(0, 0, lv.Width, lv.Height))
	for ty := 0; ty < lv.TilesDown(); ty++ {
		for tx := 0; tx < lv.TilesAcross(); tx++ {
			tile, err := r.DecodeTile(level, tx, ty)
			if err != nil {
				return nil, err
			}
			dst := image.Rect(tx*lv.TileWidth, ty*lv.TileHeight,
				(tx+1)*lv.TileWidth, (ty+1)*lv.TileHeight).
				Intersect(out.Bounds())
			xdraw.Draw(out, dst, tile, tile.Bounds().Min, xdraw.Src)
		}
	}
	return out, nil
}
