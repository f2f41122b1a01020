package operator

import (
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"github.com/leeforge/imagevise/errors"
	"github.com/leeforge/imagevise/media/processor"
)

// MaxTargetPixels caps the area a resizing operator may produce.
const MaxTargetPixels int64 = 100_000_000

func checkTargetArea(name string, w, h int) error {
	w64, h64 := int64(w), int64(h)
	if w64 > MaxTargetPixels || h64 > MaxTargetPixels || w64*h64 > MaxTargetPixels {
		return errors.NewInvalidParameter(name,
			fmt.Sprintf("target size %dx%d exceeds %d pixels", w, h, MaxTargetPixels))
	}
	return nil
}

var gravities = map[string]imaging.Anchor{
	"nw": imaging.TopLeft,
	"n":  imaging.Top,
	"ne": imaging.TopRight,
	"w":  imaging.Left,
	"c":  imaging.Center,
	"e":  imaging.Right,
	"sw": imaging.BottomLeft,
	"s":  imaging.Bottom,
	"se": imaging.BottomRight,
}

type windowParams struct {
	Width   int    `mapstructure:"width" validate:"gt=0"`
	Height  int    `mapstructure:"height" validate:"gt=0"`
	Gravity string `mapstructure:"gravity" validate:"oneof=nw n ne w c e sw s se"`
}

// Crop cuts a width x height window out of the image, placed at gravity.
// The window is clipped to the image bounds.
type Crop struct {
	Base
	windowParams
}

func NewCrop(params Params) (ImageOperator, error) {
	p, err := decodeParams[windowParams]("crop", params)
	if err != nil {
		return nil, err
	}
	return &Crop{windowParams: p}, nil
}

func (op *Crop) Apply(img *processor.Image) error {
	img.SetPixels(imaging.CropAnchor(img.Pixels(), op.Width, op.Height, gravities[op.Gravity]))
	return nil
}

func (op *Crop) Params() Params {
	return exportParams(op.windowParams)
}

// FitCrop scales the image to cover width x height, then crops the
// overflow at gravity.
type FitCrop struct {
	Base
	windowParams
}

func NewFitCrop(params Params) (ImageOperator, error) {
	p, err := decodeParams[windowParams]("fit_crop", params)
	if err != nil {
		return nil, err
	}
	if err := checkTargetArea("fit_crop", p.Width, p.Height); err != nil {
		return nil, err
	}
	return &FitCrop{windowParams: p}, nil
}

func (op *FitCrop) Apply(img *processor.Image) error {
	img.SetPixels(imaging.Fill(img.Pixels(), op.Width, op.Height, gravities[op.Gravity], imaging.Lanczos))
	return nil
}

func (op *FitCrop) Params() Params {
	return exportParams(op.windowParams)
}

type geomParams struct {
	GeometryString string `mapstructure:"geometry_string" validate:"required,geometry"`
}

// Geom resizes according to an ImageMagick geometry string.
type Geom struct {
	Base
	geomParams
	geometry Geometry
}

func NewGeom(params Params) (ImageOperator, error) {
	p, err := decodeParams[geomParams]("geom", params)
	if err != nil {
		return nil, err
	}
	g, err := ParseGeometry(p.GeometryString)
	if err != nil {
		return nil, err
	}
	return &Geom{geomParams: p, geometry: g}, nil
}

func (op *Geom) Apply(img *processor.Image) error {
	w, h := op.geometry.Size(img.Width(), img.Height())
	if w == img.Width() && h == img.Height() {
		return nil
	}
	if err := checkTargetArea("geom", w, h); err != nil {
		return err
	}
	// Resize using Lanczos3 resampling for high quality
	img.SetPixels(resize.Resize(uint(w), uint(h), img.Pixels(), resize.Lanczos3))
	return nil
}

func (op *Geom) Params() Params {
	return exportParams(op.geomParams)
}

// AutoOrient rotates and flips the pixels to match the EXIF orientation,
// then resets the tag so viewers do not rotate a second time.
type AutoOrient struct {
	Base
}

func NewAutoOrient(Params) (ImageOperator, error) {
	return &AutoOrient{}, nil
}

func (op *AutoOrient) Apply(img *processor.Image) error {
	px := img.Pixels()
	switch img.Orientation() {
	case 2:
		img.SetPixels(imaging.FlipH(px))
	case 3:
		img.SetPixels(imaging.Rotate180(px))
	case 4:
		img.SetPixels(imaging.FlipV(px))
	case 5:
		img.SetPixels(imaging.Transpose(px))
	case 6:
		img.SetPixels(imaging.Rotate270(px))
	case 7:
		img.SetPixels(imaging.Transverse(px))
	case 8:
		img.SetPixels(imaging.Rotate90(px))
	default:
		return nil
	}
	img.Exif.SetOrientation(1)
	return nil
}
