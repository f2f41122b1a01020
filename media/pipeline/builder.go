package pipeline

import (
	"github.com/leeforge/imagevise/media/operator"
)

// Builder assembles a pipeline by operator name. The first error is kept
// and returned from Build.
//
//	p, err := pipeline.NewBuilder(reg).
//		Add("geom", operator.Params{"geometry_string": "512x512"}).
//		Add("sharpen", operator.Params{"radius": 0.75, "sigma": 0.5}).
//		Build()
type Builder struct {
	reg *operator.Registry
	p   *Pipeline
	err error
}

func NewBuilder(reg *operator.Registry) *Builder {
	return &Builder{reg: reg, p: New()}
}

func (b *Builder) Add(name string, params operator.Params) *Builder {
	if b.err != nil {
		return b
	}
	entry, err := b.reg.Resolve(name)
	if err != nil {
		b.err = err
		return b
	}
	op, err := entry.New(params)
	if err != nil {
		b.err = err
		return b
	}
	b.p.appendKind(op, entry.Kind)
	return b
}

func (b *Builder) Build() (*Pipeline, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.p, nil
}
