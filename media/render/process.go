package render

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/leeforge/imagevise/errors"
	"github.com/leeforge/imagevise/http/responder"
	"github.com/leeforge/imagevise/media/operator"
	"github.com/leeforge/imagevise/media/processor"
	"github.com/leeforge/imagevise/media/request"
)

// output is an encoded render waiting to be streamed.
type output struct {
	file *os.File
	meta responder.Image
}

// Close closes and removes the render file.
func (o *output) Close() error {
	if o == nil || o.file == nil {
		return nil
	}
	name := o.file.Name()
	err := o.file.Close()
	if rmErr := os.Remove(name); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	o.file = nil
	return err
}

func (e *Engine) process(ctx context.Context, req *request.ImageRequest) (*output, error) {
	if req.Pipeline.IsEmpty() {
		return nil, errors.NewInternal("Image pipeline has no operators")
	}

	// The source behind a URL is assumed never to change.
	etag, err := req.Fingerprint()
	if err != nil {
		return nil, err
	}

	if e.limiter != nil {
		release, err := e.limiter.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	src := req.SourceURL
	f, err := e.fetchers.For(src.Scheme)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	source, err := f.Fetch(ctx, src)
	e.instrumenter.ObserveStage(StageFetch, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	det, err := e.images.Detect(source)
	if err != nil {
		if stderrors.Is(err, processor.ErrUnknownFormat) {
			return nil, errors.NewUnsupportedFormat(fmt.Sprintf("%s has an unknown input file format", src), e.rejectStatus)
		}
		return nil, err
	}
	if !processor.ContainsFormat(e.permittedSources, det.Format) || det.MultiFrame() {
		return nil, errors.NewUnsupportedFormat(fmt.Sprintf("%s does not pass file constraints", src), e.rejectStatus)
	}

	out, maxAge, err := e.applyPipeline(source, det, req)
	if err != nil {
		return nil, err
	}
	out.meta.ETag = etag
	out.meta.MaxAge = maxAge
	return out, nil
}

// applyPipeline decodes the source, runs the pipeline on the first layer
// and encodes the result. Every decoded layer is released before it returns.
func (e *Engine) applyPipeline(source io.ReadSeeker, det *processor.Detection, req *request.ImageRequest) (*output, int, error) {
	start := time.Now()
	layers, err := e.images.Decode(source, det)
	e.instrumenter.ObserveStage(StageLoad, time.Since(start), err)
	if err != nil {
		return nil, 0, errors.WrapWithType(err, errors.ErrorTypeUnsupportedFormat,
			fmt.Sprintf("%s could not be decoded: %v", req.SourceURL, err)).WithHTTPStatus(e.rejectStatus)
	}

	e.instrumenter.ImagesAllocated(len(layers))
	defer func() {
		start := time.Now()
		for _, layer := range layers {
			layer.Release()
		}
		e.instrumenter.ImagesReleased(len(layers))
		e.instrumenter.ObserveStage(StageDestroy, time.Since(start), nil)
	}()

	if len(layers) == 0 {
		return nil, 0, errors.NewUnsupportedFormat(fmt.Sprintf("%s contains no image", req.SourceURL), e.rejectStatus)
	}

	// A GIF starts with its first frame, a layered file with its composite.
	img := layers[0]
	meta := operator.NewMetadata(det)
	if err := req.Pipeline.Apply(img, meta, e.instrumenter.ObserveOperator); err != nil {
		return nil, 0, err
	}

	writer := meta.Writer
	if writer == nil {
		writer = processor.AutoWriter{}
	}
	format := writer.Format(img)
	if !processor.ContainsFormat(e.permittedOutputs, format) {
		format = processor.FormatPNG
	}

	out, err := e.encode(img, format, writer.Options())
	if err != nil {
		return nil, 0, err
	}

	maxAge := meta.ExpireAfter
	if maxAge <= 0 {
		maxAge = e.settings.CacheLifetime()
	}
	return out, maxAge, nil
}

// encode writes img to a new temp file and identifies the result.
func (e *Engine) encode(img *processor.Image, format processor.Format, opts processor.EncodeOptions) (_ *output, err error) {
	f, err := os.CreateTemp(e.tempDir, "imagevise-render-*")
	if err != nil {
		return nil, errors.WrapWithType(err, errors.ErrorTypeInternal, "failed to create render file")
	}
	out := &output{file: f}
	defer func() {
		if err != nil {
			out.Close()
		}
	}()

	start := time.Now()
	err = e.images.Encode(f, img, format, opts)
	e.instrumenter.ObserveStage(StageWrite, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, errors.NewEmptyRender()
	}

	det, err := e.images.Detect(f)
	if err != nil {
		return nil, errors.WrapWithType(err, errors.ErrorTypeInternal, "Rendered file type detection failed")
	}

	out.meta = responder.Image{
		ContentType: det.MIME,
		Length:      info.Size(),
	}
	return out, nil
}
