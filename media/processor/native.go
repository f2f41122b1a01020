package processor

import (
	"bytes"
	"fmt"
	"image/gif"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultJPEGQuality is used when a writer does not ask for one.
const DefaultJPEGQuality = 85

// EncodeOptions tune the encoder for a single write.
type EncodeOptions struct {
	// Quality applies to JPEG only. Zero means the engine default.
	Quality int
}

// Engine detects, decodes and encodes images.
type Engine interface {
	Detect(r io.ReadSeeker) (*Detection, error)
	// Decode returns every layer of the source. GIF frames become separate layers.
	Decode(r io.ReadSeeker, det *Detection) ([]*Image, error)
	Encode(w io.Writer, img *Image, format Format, opts EncodeOptions) error
}

// NativeEngine implements Engine using pure Go libraries
// This avoids CGO dependency (libvips, ImageMagick) for easier deployment
type NativeEngine struct {
	JPEGQuality int
}

func NewNativeEngine() *NativeEngine {
	return &NativeEngine{JPEGQuality: DefaultJPEGQuality}
}

func (e *NativeEngine) Detect(r io.ReadSeeker) (*Detection, error) {
	return Detect(r)
}

func (e *NativeEngine) Decode(r io.ReadSeeker, det *Detection) ([]*Image, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	switch det.Format {
	case FormatPSD:
		return nil, fmt.Errorf("no decoder available for %s", det.Format)
	case FormatGIF:
		g, err := gif.DecodeAll(r)
		if err != nil {
			return nil, err
		}
		layers := make([]*Image, 0, len(g.Image))
		for _, frame := range g.Image {
			layers = append(layers, NewImage(frame))
		}
		return layers, nil
	}

	// Orientation is applied by the auto_orient operator, not on load.
	pixels, err := imaging.Decode(r)
	if err != nil {
		return nil, err
	}
	img := NewImage(pixels)

	if det.Format == FormatJPG {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			img.Release()
			return nil, err
		}
		// A damaged EXIF block is not worth failing the render over.
		img.Exif, _ = ReadExif(r)
	}
	return []*Image{img}, nil
}

func (e *NativeEngine) Encode(w io.Writer, img *Image, format Format, opts EncodeOptions) error {
	if img == nil || img.Pixels() == nil {
		return fmt.Errorf("cannot encode a released image")
	}

	switch format {
	case FormatJPG:
		quality := opts.Quality
		if quality <= 0 {
			quality = e.JPEGQuality
		}
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img.Pixels(), imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return err
		}
		_, err := w.Write(embedExif(buf.Bytes(), img.Exif))
		return err
	case FormatPNG:
		return imaging.Encode(w, img.Pixels(), imaging.PNG)
	case FormatGIF:
		return imaging.Encode(w, img.Pixels(), imaging.GIF)
	case FormatBMP:
		return imaging.Encode(w, img.Pixels(), imaging.BMP)
	case FormatTIF:
		return imaging.Encode(w, img.Pixels(), imaging.TIFF)
	default:
		return fmt.Errorf("no encoder available for %s", format)
	}
}
