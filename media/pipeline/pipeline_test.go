package pipeline

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/imagevise/errors"
	"github.com/leeforge/imagevise/json"
	"github.com/leeforge/imagevise/media/operator"
	"github.com/leeforge/imagevise/media/processor"
)

func sample(t *testing.T, reg *operator.Registry) *Pipeline {
	t.Helper()
	p, err := NewBuilder(reg).
		Add("geom", operator.Params{"geometry_string": "10x10"}).
		Add("crop", operator.Params{"width": 5, "height": 5, "gravity": "c"}).
		Add("expire_after", operator.Params{"seconds": 60}).
		Add("srgb", nil).
		Build()
	require.NoError(t, err)
	return p
}

func names(p *Pipeline) []string {
	var out []string
	for _, op := range p.Operators() {
		out = append(out, op.Name())
	}
	return out
}

func TestBuilderPreservesOrder(t *testing.T) {
	p := sample(t, operator.NewDefaultRegistry())

	assert.Equal(t, 4, p.Len())
	assert.False(t, p.IsEmpty())
	assert.Equal(t, []string{"geom", "crop", "expire_after", "srgb"}, names(p))
}

func TestBuilderKeepsFirstError(t *testing.T) {
	_, err := NewBuilder(operator.NewDefaultRegistry()).
		Add("nope", nil).
		Add("crop", operator.Params{"width": -1}).
		Build()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidRequest))

	_, err = NewBuilder(operator.NewDefaultRegistry()).
		Add("crop", operator.Params{"width": -1, "height": 1, "gravity": "c"}).
		Build()
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidParameter))
}

func TestEmptyPipeline(t *testing.T) {
	p := New()
	assert.True(t, p.IsEmpty())
	assert.Equal(t, 0, p.Len())

	var nilPipeline *Pipeline
	assert.True(t, nilPipeline.IsEmpty())
}

func TestParamsRoundTrip(t *testing.T) {
	reg := operator.NewDefaultRegistry()
	p := sample(t, reg)

	steps, err := p.ToParams()
	require.NoError(t, err)
	require.Len(t, steps, 4)
	assert.Equal(t, Step{Name: "srgb", Params: operator.Params{}}, steps[3])

	data, err := json.Marshal(steps)
	require.NoError(t, err)
	assert.Equal(t,
		`[["geom",{"geometry_string":"10x10"}],["crop",{"gravity":"c","height":5,"width":5}],["expire_after",{"seconds":60}],["srgb",{}]]`,
		string(data))

	var decoded []Step
	require.NoError(t, json.Unmarshal(data, &decoded))
	restored, err := FromParams(reg, decoded)
	require.NoError(t, err)
	assert.Equal(t, names(p), names(restored))

	again, err := restored.ToParams()
	require.NoError(t, err)
	againData, err := json.Marshal(again)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(againData))
}

func TestStepUnmarshal(t *testing.T) {
	var s Step
	require.NoError(t, json.Unmarshal([]byte(`["auto_orient"]`), &s))
	assert.Equal(t, "auto_orient", s.Name)
	assert.Nil(t, s.Params)

	require.NoError(t, json.Unmarshal([]byte(`["geom",{"geometry_string":"x10"}]`), &s))
	assert.Equal(t, operator.Params{"geometry_string": "x10"}, s.Params)

	for _, bad := range []string{`"geom"`, `[]`, `[1,{}]`, `["geom","x"]`, `["a",{},{}]`} {
		assert.Error(t, json.Unmarshal([]byte(bad), &s), bad)
	}
}

func TestFromParamsUnknownOperator(t *testing.T) {
	_, err := FromParams(operator.NewDefaultRegistry(), []Step{{Name: "teleport"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown operator teleport")
}

type unnamed struct{}

func (unnamed) Name() string { return "" }

func (unnamed) Apply(*processor.Image) error { return nil }

func TestToParamsRejectsUnnamedOperator(t *testing.T) {
	_, err := New().Append(unnamed{}).ToParams()
	assert.Error(t, err)
}

func TestApplyObservesEveryStep(t *testing.T) {
	p := sample(t, operator.NewDefaultRegistry())
	img := processor.NewImage(image.NewNRGBA(image.Rect(0, 0, 40, 20)))
	meta := operator.NewMetadata(&processor.Detection{Format: processor.FormatPNG})

	var seen []string
	err := p.Apply(img, meta, func(name string, elapsed time.Duration, err error) {
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
		seen = append(seen, name)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"geom", "crop", "expire_after", "srgb"}, seen)
	assert.Equal(t, 5, img.Width())
	assert.Equal(t, 60, meta.ExpireAfter)
	assert.Equal(t, processor.FormatPNG, meta.Source.Format)
}

type failing struct {
	operator.Base
	err   error
	explode bool
}

func (f *failing) Apply(*processor.Image) error {
	if f.explode {
		panic("boom")
	}
	return f.err
}

type counting struct {
	operator.Base
	calls int
}

func (c *counting) Apply(*processor.Image) error {
	c.calls++
	return nil
}

func TestApplyStopsAtFirstError(t *testing.T) {
	bad := &failing{err: assert.AnError}
	bad.SetName("bad")
	after := &counting{}
	after.SetName("after")

	var observed []error
	err := New().Append(bad).Append(after).Apply(processor.NewImage(nil), nil, func(_ string, _ time.Duration, err error) {
		observed = append(observed, err)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
	assert.Equal(t, 0, after.calls)
	assert.Len(t, observed, 1)
}

func TestApplyRecoversPanics(t *testing.T) {
	bad := &failing{explode: true}
	bad.SetName("bad")

	err := New().Append(bad).Apply(processor.NewImage(nil), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
	assert.Contains(t, err.Error(), "boom")
}

func TestApplyKeepsTypedErrors(t *testing.T) {
	bad := &failing{err: errors.NewInvalidParameter("bad", "nope")}
	bad.SetName("bad")

	err := New().Append(bad).Apply(processor.NewImage(nil), nil, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidParameter))
}
