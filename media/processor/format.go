package processor

import (
	"strings"
)

// Format is the short name of an image file type.
type Format string

const (
	FormatJPG  Format = "jpg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIF  Format = "tif"
	FormatPSD  Format = "psd"
	FormatWEBP Format = "webp"
)

var formatMIME = map[Format]string{
	FormatJPG:  "image/jpeg",
	FormatPNG:  "image/png",
	FormatGIF:  "image/gif",
	FormatBMP:  "image/bmp",
	FormatTIF:  "image/tiff",
	FormatPSD:  "image/vnd.adobe.photoshop",
	FormatWEBP: "image/webp",
}

// Sources accepted unless configured otherwise. PSD is recognized but has no
// decoder, so it is left out.
var DefaultSourceFormats = []Format{FormatBMP, FormatTIF, FormatJPG, FormatGIF, FormatPNG}

// Formats a render may be written as.
var DefaultOutputFormats = []Format{FormatJPG, FormatPNG, FormatGIF}

func (f Format) String() string {
	return string(f)
}

// MIME returns the canonical media type, or "" for an unknown format.
func (f Format) MIME() string {
	return formatMIME[f]
}

// Extension returns the file extension with a leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ParseFormat accepts a format name or a common alias such as "jpeg".
func ParseFormat(s string) (Format, bool) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	switch s {
	case "jpeg", "jpe":
		return FormatJPG, true
	case "tiff":
		return FormatTIF, true
	}
	f := Format(s)
	if _, ok := formatMIME[f]; ok {
		return f, true
	}
	return "", false
}

// ParseFormats parses a list, rejecting the first unknown entry.
func ParseFormats(names []string) ([]Format, error) {
	out := make([]Format, 0, len(names))
	for _, n := range names {
		f, ok := ParseFormat(n)
		if !ok {
			return nil, &UnknownFormatError{Name: n}
		}
		out = append(out, f)
	}
	return out, nil
}

// ContainsFormat reports whether f is in list.
func ContainsFormat(list []Format, f Format) bool {
	for _, candidate := range list {
		if candidate == f {
			return true
		}
	}
	return false
}

type UnknownFormatError struct {
	Name string
}

func (e *UnknownFormatError) Error() string {
	return "unknown image format " + e.Name
}
