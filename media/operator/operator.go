// Package operator defines the image operators a pipeline is made of and
// the registry that maps operator names to constructors.
package operator

import (
	"github.com/leeforge/imagevise/media/processor"
)

// Params is the decoded JSON object an operator is built from.
type Params = map[string]any

// Operator is a named pipeline step.
type Operator interface {
	Name() string
}

// ImageOperator only touches the image.
type ImageOperator interface {
	Operator
	Apply(img *processor.Image) error
}

// MetadataOperator also reads or writes the render metadata.
type MetadataOperator interface {
	Operator
	ApplyWithMetadata(img *processor.Image, meta *Metadata) error
}

// ParamsProvider is implemented by operators that take parameters.
// Operators without it serialize with an empty parameter object.
type ParamsProvider interface {
	Params() Params
}

// Kind tells the pipeline which interface an operator is applied through.
type Kind int

const (
	KindImage Kind = iota
	KindMetadata
)

func (k Kind) String() string {
	if k == KindMetadata {
		return "metadata"
	}
	return "image"
}

// Base stores the registry name on an operator instance.
type Base struct {
	name string
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) SetName(name string) {
	b.name = name
}

// Metadata is the side channel between operators and the render engine.
// Zero values mean "use the engine default".
type Metadata struct {
	// Source is the detection result of the fetched file.
	Source *processor.Detection
	// Writer overrides the output writer.
	Writer processor.Writer
	// ExpireAfter overrides the cache lifetime, in seconds.
	ExpireAfter int
}

// NewMetadata seeds the side channel with the source detection.
func NewMetadata(source *processor.Detection) *Metadata {
	return &Metadata{Source: source}
}
