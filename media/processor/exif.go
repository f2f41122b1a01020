package processor

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerAPP1 = 0xE1

	tagOrientation = 0x0112
	typeShort      = 3
)

var exifHeader = []byte("Exif\x00\x00")

var errNotJPEG = errors.New("not a JPEG stream")

// Exif is the raw EXIF block of a JPEG source. The decoders drop it, so it
// is read separately and written back on JPEG output.
type Exif struct {
	tiff          []byte
	order         binary.ByteOrder
	orientationAt int
}

// ReadExif scans the JPEG markers up to the first scan and returns the EXIF
// block, or nil when there is none.
func ReadExif(r io.Reader) (*Exif, error) {
	br := bufio.NewReader(r)
	var soi [2]byte
	if _, err := io.ReadFull(br, soi[:]); err != nil {
		return nil, err
	}
	if soi[0] != 0xFF || soi[1] != markerSOI {
		return nil, errNotJPEG
	}

	for {
		b, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != 0xFF {
			return nil, errNotJPEG
		}
		marker, err := br.ReadByte()
		for err == nil && marker == 0xFF {
			marker, err = br.ReadByte()
		}
		if err != nil {
			return nil, err
		}

		switch {
		case marker == markerSOS || marker == markerEOI:
			return nil, nil
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			continue
		}

		var size [2]byte
		if _, err := io.ReadFull(br, size[:]); err != nil {
			return nil, err
		}
		n := int(binary.BigEndian.Uint16(size[:])) - 2
		if n < 0 {
			return nil, errNotJPEG
		}
		segment := make([]byte, n)
		if _, err := io.ReadFull(br, segment); err != nil {
			return nil, err
		}
		if marker == markerAPP1 && bytes.HasPrefix(segment, exifHeader) {
			return parseExif(segment[len(exifHeader):]), nil
		}
	}
}

func parseExif(tiff []byte) *Exif {
	x := &Exif{tiff: tiff, orientationAt: -1}
	if len(tiff) < 8 {
		return x
	}
	switch string(tiff[:2]) {
	case "II":
		x.order = binary.LittleEndian
	case "MM":
		x.order = binary.BigEndian
	default:
		return x
	}
	if x.order.Uint16(tiff[2:4]) != 42 {
		return x
	}

	ifd := int(x.order.Uint32(tiff[4:8]))
	if ifd+2 > len(tiff) {
		return x
	}
	count := int(x.order.Uint16(tiff[ifd : ifd+2]))
	for i := 0; i < count; i++ {
		entry := ifd + 2 + i*12
		if entry+12 > len(tiff) {
			break
		}
		if x.order.Uint16(tiff[entry:]) == tagOrientation && x.order.Uint16(tiff[entry+2:]) == typeShort {
			x.orientationAt = entry + 8
			break
		}
	}
	return x
}

// Orientation returns the EXIF orientation, 1 when absent or out of range.
func (x *Exif) Orientation() int {
	if x == nil || x.orientationAt < 0 {
		return 1
	}
	v := int(x.order.Uint16(x.tiff[x.orientationAt:]))
	if v < 1 || v > 8 {
		return 1
	}
	return v
}

// SetOrientation rewrites the orientation tag in place when it exists.
func (x *Exif) SetOrientation(v int) {
	if x == nil || x.orientationAt < 0 {
		return
	}
	x.order.PutUint16(x.tiff[x.orientationAt:], uint16(v))
}

// segment returns the APP1 payload, or nil when it cannot fit one segment.
func (x *Exif) segment() []byte {
	if x == nil || len(x.tiff) == 0 {
		return nil
	}
	payload := append(append([]byte{}, exifHeader...), x.tiff...)
	if len(payload)+2 > 0xFFFF {
		return nil
	}
	return payload
}

// embedExif inserts an APP1 segment right after the SOI marker of an encoded JPEG.
func embedExif(jpeg []byte, x *Exif) []byte {
	payload := x.segment()
	if payload == nil || len(jpeg) < 2 {
		return jpeg
	}
	out := make([]byte, 0, len(jpeg)+len(payload)+4)
	out = append(out, jpeg[:2]...)
	out = append(out, 0xFF, markerAPP1)
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)+2))
	out = append(out, payload...)
	return append(out, jpeg[2:]...)
}
