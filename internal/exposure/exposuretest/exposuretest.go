// Package exposuretest builds minimal EXIF blocks for tests.
package exposuretest

import (
	"bytes"
	"encoding/binary"
)

// Rational is a numerator and denominator pair.
type Rational [2]uint32

// Block describes the exposure tags to encode. A zero ISO omits the tag.
type Block struct {
	ExposureTime Rational
	FNumber      Rational
	ISO          uint16
}

type entry struct {
	tag, typ uint16
	count    uint32
	value    uint32
}

const (
	typeShort    = 3
	typeLong     = 4
	typeRational = 5

	tagExifIFD      = 0x8769
	tagExposureTime = 0x829a
	tagFNumber      = 0x829d
	tagISO          = 0x8827
)

// TIFF returns a little-endian TIFF block whose Exif IFD holds b.
func TIFF(b Block) []byte {
	const (
		ifd0Offset = 8
		exifOffset = ifd0Offset + 2 + 12 + 4
	)
	entries := []entry{
		{tag: tagExposureTime, typ: typeRational, count: 1},
		{tag: tagFNumber, typ: typeRational, count: 1},
	}
	if b.ISO != 0 {
		entries = append(entries, entry{tag: tagISO, typ: typeShort, count: 1, value: uint32(b.ISO)})
	}
	dataOffset := uint32(exifOffset + 2 + 12*len(entries) + 4) //nolint:gosec // small constant
	entries[0].value = dataOffset
	entries[1].value = dataOffset + 8

	var buf bytes.Buffer
	le := binary.LittleEndian
	buf.WriteString("II")
	buf.Write(le.AppendUint16(nil, 42))
	buf.Write(le.AppendUint32(nil, ifd0Offset))

	writeIFD(&buf, []entry{{tag: tagExifIFD, typ: typeLong, count: 1, value: exifOffset}})
	writeIFD(&buf, entries)

	for _, v := range []uint32{b.ExposureTime[0], b.ExposureTime[1], b.FNumber[0], b.FNumber[1]} {
		buf.Write(le.AppendUint32(nil, v))
	}
	return buf.Bytes()
}

// JPEG wraps the TIFF block of b in a JPEG APP1 segment.
func JPEG(b Block) []byte {
	payload := append([]byte("Exif\x00\x00"), TIFF(b)...)
	out := []byte{0xff, 0xd8, 0xff, 0xe1}
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)+2)) //nolint:gosec // payload is small
	out = append(out, payload...)
	return append(out, 0xff, 0xd9)
}

func writeIFD(buf *bytes.Buffer, entries []entry) {
	le := binary.LittleEndian
	buf.Write(le.AppendUint16(nil, uint16(len(entries)))) //nolint:gosec // few entries
	for _, e := range entries {
		buf.Write(le.AppendUint16(nil, e.tag))
		buf.Write(le.AppendUint16(nil, e.typ))
		buf.Write(le.AppendUint32(nil, e.count))
		buf.Write(le.AppendUint32(nil, e.value))
	}
	buf.Write(le.AppendUint32(nil, 0))
}
