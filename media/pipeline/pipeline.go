// Package pipeline chains operators into an ordered, serializable render
// recipe.
package pipeline

import (
	"fmt"
	"time"

	"github.com/leeforge/imagevise/errors"
	"github.com/leeforge/imagevise/media/operator"
	"github.com/leeforge/imagevise/media/processor"
)

// Observer is told about every applied step.
type Observer func(name string, elapsed time.Duration, err error)

type stage struct {
	op   operator.Operator
	kind operator.Kind
}

// Pipeline is an ordered list of operators. It is not safe for concurrent
// mutation; build it once and apply it per request.
type Pipeline struct {
	stages []stage
}

func New() *Pipeline {
	return &Pipeline{}
}

// Append adds op at the end. Operators implementing MetadataOperator are
// applied with the metadata side channel.
func (p *Pipeline) Append(op operator.Operator) *Pipeline {
	kind := operator.KindImage
	if _, ok := op.(operator.MetadataOperator); ok {
		kind = operator.KindMetadata
	}
	p.stages = append(p.stages, stage{op: op, kind: kind})
	return p
}

func (p *Pipeline) appendKind(op operator.Operator, kind operator.Kind) {
	p.stages = append(p.stages, stage{op: op, kind: kind})
}

func (p *Pipeline) IsEmpty() bool {
	return p == nil || len(p.stages) == 0
}

func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.stages)
}

// Operators returns the operators in order.
func (p *Pipeline) Operators() []operator.Operator {
	if p == nil {
		return nil
	}
	ops := make([]operator.Operator, len(p.stages))
	for i, s := range p.stages {
		ops[i] = s.op
	}
	return ops
}

// ToParams serializes the pipeline into ordered steps.
func (p *Pipeline) ToParams() ([]Step, error) {
	steps := make([]Step, 0, p.Len())
	for i, op := range p.Operators() {
		name := op.Name()
		if name == "" {
			return nil, fmt.Errorf("operator %T at position %d has no name", op, i)
		}
		params := operator.Params{}
		if pp, ok := op.(operator.ParamsProvider); ok {
			params = pp.Params()
		}
		steps = append(steps, Step{Name: name, Params: params})
	}
	return steps, nil
}

// FromParams resolves every step through reg. Parameter maps are only
// handed to constructors when they carry keys.
func FromParams(reg *operator.Registry, steps []Step) (*Pipeline, error) {
	p := New()
	for _, s := range steps {
		entry, err := reg.Resolve(s.Name)
		if err != nil {
			return nil, err
		}
		var params operator.Params
		if len(s.Params) > 0 {
			params = s.Params
		}
		op, err := entry.New(params)
		if err != nil {
			return nil, err
		}
		p.appendKind(op, entry.Kind)
	}
	return p, nil
}

// Apply runs every operator in order against img and meta. The first
// failure aborts the run.
func (p *Pipeline) Apply(img *processor.Image, meta *operator.Metadata, observe Observer) error {
	if meta == nil {
		meta = operator.NewMetadata(nil)
	}
	for _, s := range p.stages {
		name := s.op.Name()
		start := time.Now()
		err := apply(s, img, meta)
		if observe != nil {
			observe(name, time.Since(start), err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func apply(s stage, img *processor.Image, meta *operator.Metadata) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Recover(r).WithDetail("operator", s.op.Name())
		}
	}()

	switch s.kind {
	case operator.KindMetadata:
		mo, ok := s.op.(operator.MetadataOperator)
		if !ok {
			return errors.NewInternal(fmt.Sprintf("operator %s is not a metadata operator", s.op.Name()))
		}
		err = mo.ApplyWithMetadata(img, meta)
	default:
		io, ok := s.op.(operator.ImageOperator)
		if !ok {
			return errors.NewInternal(fmt.Sprintf("operator %s is not an image operator", s.op.Name()))
		}
		err = io.Apply(img)
	}
	if err != nil && errors.FromError(err).Type == errors.ErrorTypeUnknown {
		return errors.WrapWithType(err, errors.ErrorTypeInternal, fmt.Sprintf("operator %s failed: %v", s.op.Name(), err)).
			WithDetail("operator", s.op.Name())
	}
	return err
}
