package processor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// ErrUnknownFormat is returned by Detect when the content is not a known image type.
var ErrUnknownFormat = errors.New("unknown image format")

// Detection describes a file as seen from its content.
type Detection struct {
	Format Format
	MIME   string
	Frames int
	Width  int
	Height int
}

// MultiFrame reports whether the file holds an animation or several pages.
func (d *Detection) MultiFrame() bool {
	return d != nil && d.Frames > 1
}

// Detect sniffs the image type of r. The reader is rewound before returning.
func Detect(r io.ReadSeeker) (*Detection, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return nil, fmt.Errorf("detect format: %w", err)
	}

	format, ok := formatOf(mt)
	if !ok {
		return nil, ErrUnknownFormat
	}

	det := &Detection{Format: format, MIME: format.MIME(), Frames: 1}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if cfg, _, err := image.DecodeConfig(r); err == nil {
		det.Width, det.Height = cfg.Width, cfg.Height
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	switch {
	case format == FormatGIF:
		if g, err := gif.DecodeAll(r); err == nil {
			det.Frames = len(g.Image)
		}
	case mt.Is("image/vnd.mozilla.apng"):
		det.Frames = apngFrames(r)
	}

	_, err = r.Seek(0, io.SeekStart)
	return det, err
}

// formatOf walks from the detected type up through its parents. Subtypes
// like APNG resolve to their container format.
func formatOf(mt *mimetype.MIME) (Format, bool) {
	for m := mt; m != nil; m = m.Parent() {
		for f, mime := range formatMIME {
			if m.Is(mime) {
				return f, true
			}
		}
	}
	return "", false
}

// apngFrames reads num_frames from the acTL chunk. It reports at least 2,
// since the type is only detected when an acTL chunk exists.
func apngFrames(r io.Reader) int {
	head := make([]byte, 4096)
	n, _ := io.ReadFull(r, head)
	head = head[:n]
	idx := bytes.Index(head, []byte("acTL"))
	if idx < 0 || idx+8 > len(head) {
		return 2
	}
	frames := int(binary.BigEndian.Uint32(head[idx+4 : idx+8]))
	if frames < 2 {
		return 2
	}
	return frames
}
