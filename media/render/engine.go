// Package render turns signed image requests into HTTP responses.
package render

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leeforge/imagevise/errors"
	"github.com/leeforge/imagevise/http/responder"
	"github.com/leeforge/imagevise/logging"
	"github.com/leeforge/imagevise/media/fetcher"
	"github.com/leeforge/imagevise/media/operator"
	"github.com/leeforge/imagevise/media/processor"
	"github.com/leeforge/imagevise/media/request"
	"github.com/leeforge/imagevise/media/settings"
)

// Render stages reported to the Instrumenter.
const (
	StageFetch   = "fetch"
	StageLoad    = "load"
	StageWrite   = "write"
	StageDestroy = "destroy"
)

// TokenMode selects where the signed token is read from.
type TokenMode string

const (
	// TokenModePath reads /<q>/<sig> and refuses any query string.
	TokenModePath TokenMode = "path"
	// TokenModeQuery reads ?q=<q>&sig=<sig> and refuses any other key.
	TokenModeQuery TokenMode = "query"
)

// ParseTokenMode accepts "path", "query" or "" (path).
func ParseTokenMode(s string) (TokenMode, error) {
	switch TokenMode(strings.ToLower(s)) {
	case "", TokenModePath:
		return TokenModePath, nil
	case TokenModeQuery:
		return TokenModeQuery, nil
	}
	return "", fmt.Errorf("unknown token mode %q", s)
}

// Instrumenter receives timings and counters from every render.
type Instrumenter interface {
	ObserveStage(stage string, elapsed time.Duration, err error)
	ObserveOperator(name string, elapsed time.Duration, err error)
	ObserveResponse(status int)
	ImagesAllocated(n int)
	ImagesReleased(n int)
}

type nopInstrumenter struct{}

func (nopInstrumenter) ObserveStage(string, time.Duration, error)    {}
func (nopInstrumenter) ObserveOperator(string, time.Duration, error) {}
func (nopInstrumenter) ObserveResponse(int)                          {}
func (nopInstrumenter) ImagesAllocated(int)                          {}
func (nopInstrumenter) ImagesReleased(int)                           {}

// Limiter bounds the number of renders in flight.
type Limiter interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Options configure an Engine. Zero values select the defaults.
type Options struct {
	Settings  *settings.Settings
	Operators *operator.Registry
	Fetchers  *fetcher.Registry
	Images    processor.Engine

	Hooks        Hooks
	Instrumenter Instrumenter
	Limiter      Limiter
	Logger       logging.Logger

	TokenMode TokenMode
	// FormatRejectStatus is the status for unsupported sources. Default 400.
	FormatRejectStatus int
	PermittedSources   []processor.Format
	PermittedOutputs   []processor.Format
	// TempDir holds fetched sources and renders. Empty means os.TempDir().
	TempDir string
	// RaiseErrors makes Handle return failures instead of answering them.
	RaiseErrors bool
}

// Engine is the http.Handler that serves renders.
type Engine struct {
	settings     *settings.Settings
	operators    *operator.Registry
	fetchers     *fetcher.Registry
	images       processor.Engine
	hooks        Hooks
	instrumenter Instrumenter
	limiter      Limiter

	tokenMode        TokenMode
	rejectStatus     int
	permittedSources []processor.Format
	permittedOutputs []processor.Format
	tempDir          string
	raiseErrors      bool
}

func New(opts Options) *Engine {
	e := &Engine{
		settings:         opts.Settings,
		operators:        opts.Operators,
		fetchers:         opts.Fetchers,
		images:           opts.Images,
		hooks:            opts.Hooks,
		instrumenter:     opts.Instrumenter,
		limiter:          opts.Limiter,
		tokenMode:        opts.TokenMode,
		rejectStatus:     opts.FormatRejectStatus,
		permittedSources: opts.PermittedSources,
		permittedOutputs: opts.PermittedOutputs,
		tempDir:          opts.TempDir,
		raiseErrors:      opts.RaiseErrors,
	}

	if e.settings == nil {
		e.settings = settings.New()
	}
	if e.operators == nil {
		e.operators = operator.NewDefaultRegistry()
	}
	if e.fetchers == nil {
		e.fetchers = fetcher.NewDefaultRegistry(e.settings, fetcher.Options{TempDir: e.tempDir})
	}
	if e.images == nil {
		e.images = processor.NewNativeEngine()
	}
	if e.hooks == nil {
		e.hooks = NewLogReporter(opts.Logger)
	}
	if e.instrumenter == nil {
		e.instrumenter = nopInstrumenter{}
	}
	if e.tokenMode == "" {
		e.tokenMode = TokenModePath
	}
	if e.rejectStatus == 0 {
		e.rejectStatus = http.StatusBadRequest
	}
	if len(e.permittedSources) == 0 {
		e.permittedSources = processor.DefaultSourceFormats
	}
	if len(e.permittedOutputs) == 0 {
		e.permittedOutputs = processor.DefaultOutputFormats
	}
	return e
}

// ServeHTTP answers the request. In raise mode a failure is re-panicked
// for recovery middleware further up to report.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := e.Handle(w, r); err != nil {
		panic(err)
	}
}

// Handle serves one render. It only returns an error in raise mode, in
// which case nothing has been written to w.
func (e *Engine) Handle(w http.ResponseWriter, r *http.Request) error {
	e.hooks.Setup(r)

	// Any ETag means the client already holds the render: the URL fully
	// determines the output.
	if r.Header.Get("If-None-Match") != "" {
		responder.NotModified(w)
		e.instrumenter.ObserveResponse(http.StatusNotModified)
		return nil
	}

	out, err := e.render(r)
	if err != nil {
		var b *bailout
		if stderrors.As(err, &b) {
			e.errorResponse(w, b.status, b.message)
			return nil
		}
		return e.fail(w, r, err)
	}
	defer out.Close()

	e.instrumenter.ObserveResponse(http.StatusOK)
	if _, err := responder.WriteImage(w, out.meta, out.file); err != nil {
		logging.FromContext(r.Context()).Debug("render.stream_aborted", zap.Error(err))
	}
	return nil
}

func (e *Engine) render(r *http.Request) (out *output, err error) {
	defer func() {
		if v := recover(); v != nil {
			out, err = nil, errors.Recover(v)
		}
	}()

	if r.Method != http.MethodGet {
		return nil, bail(http.StatusMethodNotAllowed, "Only GET supported")
	}
	q, sig, err := e.extractToken(r)
	if err != nil {
		return nil, err
	}

	secrets, err := e.settings.SecretKeys()
	if err != nil {
		return nil, err
	}
	req, err := request.VerifyAndDecode(q, sig, secrets, e.operators)
	if err != nil {
		return nil, err
	}
	return e.process(r.Context(), req)
}

// fail maps err onto a response, or returns it in raise mode.
func (e *Engine) fail(w http.ResponseWriter, r *http.Request, err error) error {
	status, requestError := classify(err)
	if requestError {
		e.hooks.RequestError(r, err)
	} else {
		e.hooks.GenericError(r, err)
	}
	if e.raiseErrors {
		e.instrumenter.ObserveResponse(status)
		return err
	}
	e.errorResponse(w, status, err.Error())
	return nil
}

func (e *Engine) errorResponse(w http.ResponseWriter, status int, message string) {
	responder.Errors(w, status, message)
	e.instrumenter.ObserveResponse(status)
}

// classify returns the response status for err and whether it is a
// request error as opposed to a generic server failure.
func classify(err error) (status int, requestError bool) {
	status, hasStatus := errors.StatusOf(err)
	if errors.IsPermanent(err) {
		if !hasStatus {
			status = http.StatusBadRequest
		}
		return status, true
	}
	if hasStatus {
		return status, true
	}
	return http.StatusInternalServerError, false
}

// bailout ends a request with a fixed response. Hooks and raise mode do
// not apply to it.
type bailout struct {
	status  int
	message string
}

func (b *bailout) Error() string {
	return b.message
}

func bail(status int, message string) error {
	return &bailout{status: status, message: message}
}
