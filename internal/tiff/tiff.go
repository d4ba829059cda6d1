// Package tiff implements the minimal TIFF container access the converter
// needs: walking image file directories (IFDs) and decoding tag values in
// classic and BigTIFF files of either byte order. Pixel data handling is left
// to the callers.
package tiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Tag IDs used by the converter.
const (
	TagNewSubfileType   = 254
	TagImageWidth       = 256
	TagImageLength      = 257
	TagBitsPerSample    = 258
	TagCompression      = 259
	TagPhotometric      = 262
	TagImageDescription = 270
	TagSamplesPerPixel  = 277
	TagXResolution      = 282
	TagYResolution      = 283
	TagPlanarConfig     = 284
	TagResolutionUnit   = 296
	TagSoftware         = 305
	TagTileWidth        = 322
	TagTileLength       = 323
	TagTileOffsets      = 324
	TagTileByteCounts   = 325
	TagYCbCrSubSampling = 530
)

// Field types from the TIFF 6.0 and BigTIFF specifications.
const (
	TypeByte     = 1
	TypeASCII    = 2
	TypeShort    = 3
	TypeLong     = 4
	TypeRational = 5
	TypeLong8    = 16
)

// Compression values.
const (
	CompressionNone = 1
	CompressionJPEG = 7 // TTN2 "new-style" JPEG
)

// PhotometricInterpretation values.
const (
	PhotometricBlackIsZero = 1
	PhotometricRGB         = 2
	PhotometricYCbCr       = 6
)

// ResolutionUnit values.
const (
	ResUnitNone       = 1
	ResUnitInch       = 2
	ResUnitCentimeter = 3
)

// ErrNotTIFF is returned when the header magic is not a TIFF byte-order mark.
var ErrNotTIFF = errors.New("not a TIFF file")

// Entry is one decoded IFD entry. The raw value field is kept as stored; the
// accessor methods interpret it against the file's byte order.
type Entry struct {
	Tag   uint16
	Type  uint16
	Count uint64
	value [8]byte
}

// IFD is one image file directory: its entries indexed by tag, plus the
// offset of the next directory in the chain (0 at the end).
type IFD struct {
	Entries map[uint16]Entry
	Next    int64
}

// File provides read access to the directory structure of a TIFF file.
type File struct {
	r     io.ReadSeeker
	order binary.ByteOrder
	big   bool
	first int64
}

// Parse reads the TIFF header and prepares directory access. The reader must
// stay open for the lifetime of the File.
func Parse(r io.ReadSeeker) (*File, error) {
	var header [16]byte
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, header[:8]); err != nil {
		return nil, fmt.Errorf("read TIFF header: %w", err)
	}

	f := &File{r: r}
	switch {
	case header[0] == 'I' && header[1] == 'I':
		f.order = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		f.order = binary.BigEndian
	default:
		return nil, ErrNotTIFF
	}

	switch f.order.Uint16(header[2:4]) {
	case 42:
		f.first = int64(f.order.Uint32(header[4:8]))
	case 43:
		// BigTIFF: offset size field then an 8-byte first IFD offset.
		if f.order.Uint16(header[4:6]) != 8 {
			return nil, fmt.Errorf("unsupported BigTIFF offset size")
		}
		if _, err := io.ReadFull(r, header[8:16]); err != nil {
			return nil, fmt.Errorf("read BigTIFF header: %w", err)
		}
		f.first = int64(f.order.Uint64(header[8:16]))
		f.big = true
	default:
		return nil, ErrNotTIFF
	}

	return f, nil
}

// ByteOrder returns the file's byte order.
func (f *File) ByteOrder() binary.ByteOrder { return f.order }

// BigTIFF reports whether the file uses the BigTIFF layout.
func (f *File) BigTIFF() bool { return f.big }

// FirstIFD returns the offset of the first directory.
func (f *File) FirstIFD() int64 { return f.first }

// ReadIFD reads the directory at the given offset.
func (f *File) ReadIFD(offset int64) (*IFD, error) {
	if _, err := f.r.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	entrySize := 12
	countSize := 2
	if f.big {
		entrySize = 20
		countSize = 8
	}

	var countBuf [8]byte
	if _, err := io.ReadFull(f.r, countBuf[:countSize]); err != nil {
		return nil, fmt.Errorf("read IFD entry count: %w", err)
	}
	var count uint64
	if f.big {
		count = f.order.Uint64(countBuf[:8])
	} else {
		count = uint64(f.order.Uint16(countBuf[:2]))
	}
	if count > 4096 {
		return nil, fmt.Errorf("implausible IFD entry count %d", count)
	}

	buf := make([]byte, int(count)*entrySize+nextSize(f.big))
	if _, err := io.ReadFull(f.r, buf); err != nil {
		return nil, fmt.Errorf("read IFD entries: %w", err)
	}

	ifd := &IFD{Entries: make(map[uint16]Entry, count)}
	for i := 0; i < int(count); i++ {
		raw := buf[i*entrySize : (i+1)*entrySize]
		e := Entry{
			Tag:  f.order.Uint16(raw[0:2]),
			Type: f.order.Uint16(raw[2:4]),
		}
		if f.big {
			e.Count = f.order.Uint64(raw[4:12])
			copy(e.value[:], raw[12:20])
		} else {
			e.Count = uint64(f.order.Uint32(raw[4:8]))
			copy(e.value[:4], raw[8:12])
		}
		ifd.Entries[e.Tag] = e
	}

	tail := buf[int(count)*entrySize:]
	if f.big {
		ifd.Next = int64(f.order.Uint64(tail))
	} else {
		ifd.Next = int64(f.order.Uint32(tail))
	}

	return ifd, nil
}

func nextSize(big bool) int {
	if big {
		return 8
	}
	return 4
}

func typeSize(typ uint16) int {
	switch typ {
	case TypeByte, TypeASCII:
		return 1
	case TypeShort:
		return 2
	case TypeLong:
		return 4
	case TypeRational, TypeLong8:
		return 8
	default:
		return 0
	}
}

// valueBytes returns the raw value data for an entry, following the offset
// indirection when the value does not fit inline.
func (f *File) valueBytes(e Entry) ([]byte, error) {
	size := typeSize(e.Type)
	if size == 0 {
		return nil, fmt.Errorf("tag %d: unsupported field type %d", e.Tag, e.Type)
	}
	total := size * int(e.Count)

	inline := 4
	if f.big {
		inline = 8
	}
	if total <= inline {
		return e.value[:total], nil
	}

	var offset int64
	if f.big {
		offset = int64(f.order.Uint64(e.value[:8]))
	} else {
		offset = int64(f.order.Uint32(e.value[:4]))
	}
	if _, err := f.r.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, total)
	if _, err := io.ReadFull(f.r, buf); err != nil {
		return nil, fmt.Errorf("tag %d: read value: %w", e.Tag, err)
	}
	return buf, nil
}

// Uint returns the first integral value of a tag.
func (f *File) Uint(ifd *IFD, tag uint16) (uint64, bool) {
	vs, err := f.Uints(ifd, tag)
	if err != nil || len(vs) == 0 {
		return 0, false
	}
	return vs[0], true
}

// Uints returns all integral values of a tag.
func (f *File) Uints(ifd *IFD, tag uint16) ([]uint64, error) {
	e, ok := ifd.Entries[tag]
	if !ok {
		return nil, nil
	}
	buf, err := f.valueBytes(e)
	if err != nil {
		return nil, err
	}

	vs := make([]uint64, e.Count)
	for i := range vs {
		switch e.Type {
		case TypeByte:
			vs[i] = uint64(buf[i])
		case TypeShort:
			vs[i] = uint64(f.order.Uint16(buf[i*2:]))
		case TypeLong:
			vs[i] = uint64(f.order.Uint32(buf[i*4:]))
		case TypeLong8:
			vs[i] = f.order.Uint64(buf[i*8:])
		default:
			return nil, fmt.Errorf("tag %d: not an integral type", tag)
		}
	}
	return vs, nil
}

// Rational returns the first RATIONAL value of a tag as a float.
func (f *File) Rational(ifd *IFD, tag uint16) (float64, bool) {
	e, ok := ifd.Entries[tag]
	if !ok || e.Type != TypeRational || e.Count == 0 {
		return 0, false
	}
	buf, err := f.valueBytes(e)
	if err != nil {
		return 0, false
	}
	num := f.order.Uint32(buf[0:4])
	den := f.order.Uint32(buf[4:8])
	if den == 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}

// ASCII returns the string value of a tag with the trailing NUL stripped.
func (f *File) ASCII(ifd *IFD, tag uint16) (string, bool) {
	e, ok := ifd.Entries[tag]
	if !ok || e.Type != TypeASCII {
		return "", false
	}
	buf, err := f.valueBytes(e)
	if err != nil {
		return "", false
	}
	for len(buf) > 0 && buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf), true
}
