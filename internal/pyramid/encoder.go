// Package pyramid writes and reads tiled, multi-level, JPEG-compressed TIFF
// images. The writer produces one IFD per resolution level, halving (ceil)
// per level, with each tile stored as a self-contained JPEG stream per TTN2.
package pyramid

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strings"

	xdraw "golang.org/x/image/draw"

	"slidemask/internal/tiff"
	"slidemask/internal/version"
)

// EncodeOptions configures the pyramid writer.
type EncodeOptions struct {
	TileSize int // tile edge in pixels
	Quality  int // JPEG quality, 1-100

	// Description is embedded as the ImageDescription tag on level 0.
	Description string

	// Resolution metadata echoed onto level 0 when all three are set.
	XResolution    float64
	YResolution    float64
	ResolutionUnit int // tiff.ResUnitInch or tiff.ResUnitCentimeter
}

// DefaultEncodeOptions returns the converter's fixed output settings.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{TileSize: 256, Quality: 75}
}

// Encode writes img to path as a tiled pyramidal TIFF, replacing whatever
// extension path carries with ".tiff". Levels are added until both dimensions
// fit in a single tile. Returns the path actually written. A failure mid-way
// can leave a truncated file behind; callers own cleanup.
func Encode(path string, img image.Image, opts EncodeOptions) (string, error) {
	if opts.TileSize <= 0 || opts.TileSize%16 != 0 {
		return "", fmt.Errorf("tile size %d must be a positive multiple of 16", opts.TileSize)
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		return "", fmt.Errorf("JPEG quality %d out of range", opts.Quality)
	}

	ext := filepath.Ext(path)
	path = strings.TrimSuffix(path, ext) + ".tiff"

	levels, err := buildLevels(img, opts)
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create output: %w", err)
	}
	if err := writeContainer(f, levels, opts); err != nil {
		f.Close()
		return path, fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return path, fmt.Errorf("encode %s: %w", path, err)
	}
	return path, nil
}

// levelData is one fully compressed resolution level.
type levelData struct {
	width, height int
	gray          bool
	tiles         [][]byte // row-major JPEG streams, padded tiles
}

func (l *levelData) tilesAcross(ts int) int { return (l.width + ts - 1) / ts }
func (l *levelData) tilesDown(ts int) int   { return (l.height + ts - 1) / ts }

// buildLevels compresses level 0 and every halved level down to tile size.
func buildLevels(img image.Image, opts EncodeOptions) ([]*levelData, error) {
	gray := false
	if _, ok := img.(*image.Gray); ok {
		gray = true
	}

	var levels []*levelData
	cur := img
	for {
		b := cur.Bounds()
		lv := &levelData{width: b.Dx(), height: b.Dy(), gray: gray}
		if err := compressTiles(lv, cur, opts); err != nil {
			return nil, err
		}
		levels = append(levels, lv)

		if lv.width <= opts.TileSize && lv.height <= opts.TileSize {
			return levels, nil
		}
		cur = halve(cur, gray)
	}
}

// halve downsamples an image by exactly 2 with ceil semantics, so a 2n+1
// wide level produces an n+1 wide one.
func halve(img image.Image, gray bool) image.Image {
	b := img.Bounds()
	w := (b.Dx() + 1) / 2
	h := (b.Dy() + 1) / 2

	var dst xdraw.Image
	if gray {
		dst = image.NewGray(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// compressTiles splits one level into full tiles and JPEG-encodes each.
// Edge tiles are padded to the tile boundary by replicating the last row and
// column, which keeps JPEG ringing out of the image area.
func compressTiles(lv *levelData, img image.Image, opts EncodeOptions) error {
	ts := opts.TileSize
	across, down := lv.tilesAcross(ts), lv.tilesDown(ts)
	lv.tiles = make([][]byte, 0, across*down)

	jpegOpts := &jpeg.Options{Quality: opts.Quality}
	for ty := 0; ty < down; ty++ {
		for tx := 0; tx < across; tx++ {
			tile := extractTile(img, lv, tx*ts, ty*ts, ts)
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, tile, jpegOpts); err != nil {
				return fmt.Errorf("compress tile (%d,%d): %w", tx, ty, err)
			}
			lv.tiles = append(lv.tiles, buf.Bytes())
		}
	}
	return nil
}

func extractTile(img image.Image, lv *levelData, ox, oy, ts int) image.Image {
	rw := min(ts, lv.width-ox)
	rh := min(ts, lv.height-oy)
	b := img.Bounds()

	if lv.gray {
		src := img.(*image.Gray)
		tile := image.NewGray(image.Rect(0, 0, ts, ts))
		for y := 0; y < rh; y++ {
			srcRow := src.Pix[src.PixOffset(b.Min.X+ox, b.Min.Y+oy+y) : src.PixOffset(b.Min.X+ox, b.Min.Y+oy+y)+rw]
			copy(tile.Pix[y*tile.Stride:], srcRow)
		}
		padGray(tile, rw, rh, ts)
		return tile
	}

	tile := image.NewRGBA(image.Rect(0, 0, ts, ts))
	xdraw.Draw(tile, image.Rect(0, 0, rw, rh), img, image.Pt(b.Min.X+ox, b.Min.Y+oy), xdraw.Src)
	padRGBA(tile, rw, rh, ts)
	return tile
}

func padGray(tile *image.Gray, rw, rh, ts int) {
	for y := 0; y < rh; y++ {
		row := tile.Pix[y*tile.Stride : y*tile.Stride+ts]
		for x := rw; x < ts; x++ {
			row[x] = row[rw-1]
		}
	}
	for y := rh; y < ts; y++ {
		copy(tile.Pix[y*tile.Stride:y*tile.Stride+ts], tile.Pix[(rh-1)*tile.Stride:(rh-1)*tile.Stride+ts])
	}
}

func padRGBA(tile *image.RGBA, rw, rh, ts int) {
	if rw > 0 {
		for y := 0; y < rh; y++ {
			row := tile.Pix[y*tile.Stride : y*tile.Stride+ts*4]
			last := row[(rw-1)*4 : rw*4]
			for x := rw; x < ts; x++ {
				copy(row[x*4:(x+1)*4], last)
			}
		}
	}
	if rh > 0 {
		lastRow := tile.Pix[(rh-1)*tile.Stride : (rh-1)*tile.Stride+ts*4]
		for y := rh; y < ts; y++ {
			copy(tile.Pix[y*tile.Stride:y*tile.Stride+ts*4], lastRow)
		}
	}
}

// ifdEntry is one directory entry with its value field already resolved to
// either an inline value or an absolute offset.
type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	val   uint32
}

const (
	ifdEntrySize  = 12
	ifdHeaderSize = 8
)

func ifdSize(n int) uint32 { return uint32(2 + n*ifdEntrySize + 4) }

func padEven(n uint32) uint32 { return n + n%2 }

// levelLayout fixes where each part of one level lands in the file:
// [IFD][auxiliary values][tile data], levels back to back after the header.
type levelLayout struct {
	ifdOffset   uint32
	auxOffset   uint32
	tileOffsets []uint32
	byteCounts  []uint32
	end         uint32
}

func layoutLevel(lv *levelData, first bool, opts EncodeOptions, pos uint32) levelLayout {
	n := countTags(lv, first, opts)
	lay := levelLayout{ifdOffset: pos}
	lay.auxOffset = pos + ifdSize(n)

	aux := auxDataSize(lv, first, opts)
	tilePos := lay.auxOffset + aux
	for _, t := range lv.tiles {
		lay.tileOffsets = append(lay.tileOffsets, tilePos)
		lay.byteCounts = append(lay.byteCounts, uint32(len(t)))
		tilePos += padEven(uint32(len(t)))
	}
	lay.end = tilePos
	return lay
}

func countTags(lv *levelData, first bool, opts EncodeOptions) int {
	// Always present: 254, 256, 257, 258, 259, 262, 277, 284, 322, 323, 324, 325.
	n := 12
	if !lv.gray {
		n++ // 530 YCbCrSubSampling
	}
	if first {
		n++ // 305 Software
		if opts.Description != "" {
			n++ // 270
		}
		if hasResolution(opts) {
			n += 3 // 282, 283, 296
		}
	}
	return n
}

func hasResolution(opts EncodeOptions) bool {
	return opts.XResolution > 0 && opts.YResolution > 0 && opts.ResolutionUnit != 0
}

func auxDataSize(lv *levelData, first bool, opts EncodeOptions) uint32 {
	var size uint32
	if !lv.gray {
		size += 6 // BitsPerSample SHORT[3]
	}
	if first {
		size += padEven(uint32(len(softwareTag())) + 1)
		if opts.Description != "" {
			size += padEven(uint32(len(opts.Description)) + 1)
		}
		if hasResolution(opts) {
			size += 16 // two RATIONALs
		}
	}
	if len(lv.tiles) > 1 {
		size += uint32(8 * len(lv.tiles)) // offset + bytecount arrays
	}
	return size
}

func softwareTag() string {
	return "slidemask " + version.Version
}

// writeContainer serializes the levels as a classic little-endian TIFF with
// one IFD per level, chained full resolution first.
func writeContainer(f *os.File, levels []*levelData, opts EncodeOptions) error {
	layouts := make([]levelLayout, len(levels))
	pos := uint32(ifdHeaderSize)
	for i, lv := range levels {
		layouts[i] = layoutLevel(lv, i == 0, opts, pos)
		pos = layouts[i].end
	}

	var out bytes.Buffer
	le := binary.LittleEndian

	// Header.
	out.WriteString("II")
	binary.Write(&out, le, uint16(42))
	binary.Write(&out, le, layouts[0].ifdOffset)

	for i, lv := range levels {
		next := uint32(0)
		if i+1 < len(levels) {
			next = layouts[i+1].ifdOffset
		}
		if err := writeLevel(&out, lv, i == 0, opts, layouts[i], next); err != nil {
			return err
		}
	}

	_, err := f.Write(out.Bytes())
	return err
}

func writeLevel(out *bytes.Buffer, lv *levelData, first bool, opts EncodeOptions, lay levelLayout, next uint32) error {
	le := binary.LittleEndian
	aux := &auxWriter{base: lay.auxOffset}

	spp := uint32(3)
	photometric := uint32(tiff.PhotometricYCbCr)
	if lv.gray {
		spp = 1
		photometric = uint32(tiff.PhotometricBlackIsZero)
	}

	subfile := uint32(1)
	if first {
		subfile = 0
	}

	entries := []ifdEntry{
		{tiff.TagNewSubfileType, tiff.TypeLong, 1, subfile},
		{tiff.TagImageWidth, tiff.TypeLong, 1, uint32(lv.width)},
		{tiff.TagImageLength, tiff.TypeLong, 1, uint32(lv.height)},
		{tiff.TagCompression, tiff.TypeShort, 1, tiff.CompressionJPEG},
		{tiff.TagPhotometric, tiff.TypeShort, 1, photometric},
		{tiff.TagSamplesPerPixel, tiff.TypeShort, 1, spp},
		{tiff.TagPlanarConfig, tiff.TypeShort, 1, 1},
		{tiff.TagTileWidth, tiff.TypeLong, 1, uint32(opts.TileSize)},
		{tiff.TagTileLength, tiff.TypeLong, 1, uint32(opts.TileSize)},
	}

	if lv.gray {
		entries = append(entries, ifdEntry{tiff.TagBitsPerSample, tiff.TypeShort, 1, 8})
	} else {
		off := aux.writeShorts([]uint16{8, 8, 8})
		entries = append(entries, ifdEntry{tiff.TagBitsPerSample, tiff.TypeShort, 3, off})
		entries = append(entries, ifdEntry{tiff.TagYCbCrSubSampling, tiff.TypeShort, 2, 2 | 2<<16})
	}

	if first {
		sw := softwareTag()
		entries = append(entries, ifdEntry{tiff.TagSoftware, tiff.TypeASCII, uint32(len(sw)) + 1, aux.writeASCII(sw)})
		if opts.Description != "" {
			entries = append(entries, ifdEntry{
				tiff.TagImageDescription, tiff.TypeASCII,
				uint32(len(opts.Description)) + 1, aux.writeASCII(opts.Description),
			})
		}
		if hasResolution(opts) {
			entries = append(entries,
				ifdEntry{tiff.TagXResolution, tiff.TypeRational, 1, aux.writeRational(opts.XResolution)},
				ifdEntry{tiff.TagYResolution, tiff.TypeRational, 1, aux.writeRational(opts.YResolution)},
				ifdEntry{tiff.TagResolutionUnit, tiff.TypeShort, 1, uint32(opts.ResolutionUnit)},
			)
		}
	}

	if len(lv.tiles) == 1 {
		entries = append(entries,
			ifdEntry{tiff.TagTileOffsets, tiff.TypeLong, 1, lay.tileOffsets[0]},
			ifdEntry{tiff.TagTileByteCounts, tiff.TypeLong, 1, lay.byteCounts[0]},
		)
	} else {
		entries = append(entries,
			ifdEntry{tiff.TagTileOffsets, tiff.TypeLong, uint32(len(lv.tiles)), aux.writeLongs(lay.tileOffsets)},
			ifdEntry{tiff.TagTileByteCounts, tiff.TypeLong, uint32(len(lv.tiles)), aux.writeLongs(lay.byteCounts)},
		)
	}

	// TIFF requires directory entries sorted by tag.
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	binary.Write(out, le, uint16(len(entries)))
	for _, e := range entries {
		binary.Write(out, le, e.tag)
		binary.Write(out, le, e.typ)
		binary.Write(out, le, e.count)
		binary.Write(out, le, e.val)
	}
	binary.Write(out, le, next)

	if uint32(out.Len()) != lay.auxOffset {
		return fmt.Errorf("internal layout error: IFD ends at %d, expected %d", out.Len(), lay.auxOffset)
	}
	out.Write(aux.buf.Bytes())

	for _, t := range lv.tiles {
		out.Write(t)
		if len(t)%2 == 1 {
			out.WriteByte(0)
		}
	}
	if uint32(out.Len()) != lay.end {
		return fmt.Errorf("internal layout error: level ends at %d, expected %d", out.Len(), lay.end)
	}
	return nil
}

// auxWriter accumulates out-of-line tag values and hands back their absolute
// offsets. Every value is kept even-aligned as TIFF 6.0 requires.
type auxWriter struct {
	base uint32
	buf  bytes.Buffer
}

func (a *auxWriter) offset() uint32 { return a.base + uint32(a.buf.Len()) }

func (a *auxWriter) writeShorts(vs []uint16) uint32 {
	off := a.offset()
	for _, v := range vs {
		binary.Write(&a.buf, binary.LittleEndian, v)
	}
	return off
}

func (a *auxWriter) writeLongs(vs []uint32) uint32 {
	off := a.offset()
	for _, v := range vs {
		binary.Write(&a.buf, binary.LittleEndian, v)
	}
	return off
}

func (a *auxWriter) writeASCII(s string) uint32 {
	off := a.offset()
	a.buf.WriteString(s)
	a.buf.WriteByte(0)
	if a.buf.Len()%2 == 1 {
		a.buf.WriteByte(0)
	}
	return off
}

func (a *auxWriter) writeRational(v float64) uint32 {
	off := a.offset()
	// Keep four digits of precision in the numerator.
	binary.Write(&a.buf, binary.LittleEndian, uint32(v*10000+0.5))
	binary.Write(&a.buf, binary.LittleEndian, uint32(10000))
	return off
}
