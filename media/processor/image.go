package processor

import (
	"image"
	"sync"
)

// Image is one decoded layer plus the metadata that travels with it.
// Release must be called once the layer is no longer needed.
type Image struct {
	pixels image.Image

	// Exif is nil for sources without EXIF or after strip_metadata.
	Exif *Exif

	releaseOnce sync.Once
	released    bool
	onRelease   []func()
}

func NewImage(pixels image.Image) *Image {
	return &Image{pixels: pixels}
}

func (img *Image) Pixels() image.Image {
	return img.pixels
}

func (img *Image) SetPixels(pixels image.Image) {
	img.pixels = pixels
}

func (img *Image) Bounds() image.Rectangle {
	if img.pixels == nil {
		return image.Rectangle{}
	}
	return img.pixels.Bounds()
}

func (img *Image) Width() int {
	return img.Bounds().Dx()
}

func (img *Image) Height() int {
	return img.Bounds().Dy()
}

// HasAlpha reports whether any pixel is not fully opaque.
func (img *Image) HasAlpha() bool {
	if img.pixels == nil {
		return false
	}
	if o, ok := img.pixels.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.pixels.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.pixels.At(x, y).RGBA(); a != 0xFFFF {
				return true
			}
		}
	}
	return false
}

// Orientation returns the EXIF orientation of the layer, 1 when unknown.
func (img *Image) Orientation() int {
	return img.Exif.Orientation()
}

// OnRelease registers fn to run when the layer is released.
func (img *Image) OnRelease(fn func()) {
	img.onRelease = append(img.onRelease, fn)
}

// Release drops the pixel buffer. Calling it more than once is a no-op.
func (img *Image) Release() {
	img.releaseOnce.Do(func() {
		img.pixels = nil
		img.Exif = nil
		img.released = true
		for _, fn := range img.onRelease {
			fn()
		}
	})
}

func (img *Image) Released() bool {
	return img.released
}
