package operator

import (
	"github.com/leeforge/imagevise/media/processor"
)

type expireParams struct {
	Seconds int `mapstructure:"seconds" validate:"gt=0"`
}

// ExpireAfter overrides the Cache-Control max-age of the response.
type ExpireAfter struct {
	Base
	expireParams
}

func NewExpireAfter(params Params) (MetadataOperator, error) {
	p, err := decodeParams[expireParams]("expire_after", params)
	if err != nil {
		return nil, err
	}
	return &ExpireAfter{expireParams: p}, nil
}

func (op *ExpireAfter) ApplyWithMetadata(_ *processor.Image, meta *Metadata) error {
	meta.ExpireAfter = op.Seconds
	return nil
}

func (op *ExpireAfter) Params() Params {
	return exportParams(op.expireParams)
}

type forceJPGParams struct {
	Quality int `mapstructure:"quality" validate:"gte=0,lte=100"`
}

// ForceJPGOut writes JPEG at the given quality regardless of transparency.
type ForceJPGOut struct {
	Base
	forceJPGParams
}

func NewForceJPGOut(params Params) (MetadataOperator, error) {
	p, err := decodeParams[forceJPGParams]("force_jpg_out", params)
	if err != nil {
		return nil, err
	}
	return &ForceJPGOut{forceJPGParams: p}, nil
}

func (op *ForceJPGOut) ApplyWithMetadata(_ *processor.Image, meta *Metadata) error {
	meta.Writer = processor.JPGWriter{Quality: op.Quality}
	return nil
}

func (op *ForceJPGOut) Params() Params {
	return exportParams(op.forceJPGParams)
}

type jpgQualityParams struct {
	JPGQuality int `mapstructure:"jpg_quality" validate:"gte=0,lte=100"`
}

// JPGQuality writes JPEG with the quality clamped to 1..100.
type JPGQuality struct {
	Base
	jpgQualityParams
}

func NewJPGQuality(params Params) (MetadataOperator, error) {
	p, err := decodeParams[jpgQualityParams]("jpg_quality", params)
	if err != nil {
		return nil, err
	}
	return &JPGQuality{jpgQualityParams: p}, nil
}

func (op *JPGQuality) ApplyWithMetadata(_ *processor.Image, meta *Metadata) error {
	meta.Writer = processor.JPGWriter{Quality: min(max(op.JPGQuality, 1), 100)}
	return nil
}

func (op *JPGQuality) Params() Params {
	return exportParams(op.jpgQualityParams)
}

type filetypeParams struct {
	Filetype string `mapstructure:"filetype" validate:"oneof=gif png jpg"`
}

// CustomOutputFiletype writes the render as gif, png or jpg. JPEG output
// flattens transparency.
type CustomOutputFiletype struct {
	Base
	filetypeParams
}

func NewCustomOutputFiletype(params Params) (MetadataOperator, error) {
	p, err := decodeParams[filetypeParams]("custom_output_filetype", params)
	if err != nil {
		return nil, err
	}
	return &CustomOutputFiletype{filetypeParams: p}, nil
}

func (op *CustomOutputFiletype) ApplyWithMetadata(_ *processor.Image, meta *Metadata) error {
	meta.Writer = processor.FormatWriter{Target: processor.Format(op.Filetype)}
	return nil
}

func (op *CustomOutputFiletype) Params() Params {
	return exportParams(op.filetypeParams)
}

type renderAsParams struct {
	RenderFileAs string `mapstructure:"render_file_as" validate:"oneof=gif png jpg"`
}

// SpecifyFiletype is the older spelling of custom_output_filetype.
type SpecifyFiletype struct {
	Base
	renderAsParams
}

func NewSpecifyFiletype(params Params) (MetadataOperator, error) {
	p, err := decodeParams[renderAsParams]("specify_filetype", params)
	if err != nil {
		return nil, err
	}
	return &SpecifyFiletype{renderAsParams: p}, nil
}

func (op *SpecifyFiletype) ApplyWithMetadata(_ *processor.Image, meta *Metadata) error {
	meta.Writer = processor.FormatWriter{Target: processor.Format(op.RenderFileAs)}
	return nil
}

func (op *SpecifyFiletype) Params() Params {
	return exportParams(op.renderAsParams)
}

// OutputFileAsJPG writes JPEG at the engine's default quality.
type OutputFileAsJPG struct {
	Base
}

func NewOutputFileAsJPG(Params) (MetadataOperator, error) {
	return &OutputFileAsJPG{}, nil
}

func (op *OutputFileAsJPG) ApplyWithMetadata(_ *processor.Image, meta *Metadata) error {
	meta.Writer = processor.JPGWriter{}
	return nil
}
