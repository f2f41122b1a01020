package render

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/leeforge/imagevise/errors"
	"github.com/leeforge/imagevise/http/middleware"
	"github.com/leeforge/imagevise/logging"
)

// Hooks observe a render. They are called for their side effects only and
// cannot change the response.
type Hooks interface {
	// Setup runs once per request before anything else.
	Setup(r *http.Request)
	// RequestError is called for client-attributable failures and for
	// failures that carry their own HTTP status.
	RequestError(r *http.Request, err error)
	// GenericError is called for everything that ends in a 500.
	GenericError(r *http.Request, err error)
}

// NopHooks ignores every event.
type NopHooks struct{}

func (NopHooks) Setup(*http.Request)               {}
func (NopHooks) RequestError(*http.Request, error) {}
func (NopHooks) GenericError(*http.Request, error) {}

// LogReporter is the default Hooks implementation. It writes request
// errors at warn and generic errors at error.
type LogReporter struct {
	Logger logging.Logger
}

func NewLogReporter(logger logging.Logger) *LogReporter {
	if logger == nil {
		logger = logging.Global()
	}
	return &LogReporter{Logger: logger.Named("render")}
}

func (h *LogReporter) logger(r *http.Request) logging.Logger {
	return logging.WithContext(h.Logger, r.Context())
}

func (h *LogReporter) Setup(r *http.Request) {
	h.logger(r).Debug("render.request", zap.String("path", r.URL.Path))
}

func (h *LogReporter) RequestError(r *http.Request, err error) {
	h.logger(r).Warn("render.request_error", errorFields(r, err)...)
}

func (h *LogReporter) GenericError(r *http.Request, err error) {
	fields := errorFields(r, err)
	if appErr := errors.FromError(err); len(appErr.Stack) > 0 {
		fields = append(fields, zap.Strings("stack", appErr.Stack))
	}
	h.logger(r).Error("render.generic_error", fields...)
}

func errorFields(r *http.Request, err error) []zap.Field {
	appErr := errors.FromError(err)
	fields := []zap.Field{
		zap.String("path", r.URL.Path),
		zap.String("error_type", string(appErr.Type)),
		zap.Error(err),
	}
	if status, ok := errors.StatusOf(err); ok {
		fields = append(fields, zap.Int("status", status))
	}
	if took := middleware.GetRequestDuration(r.Context()); took > 0 {
		fields = append(fields, zap.Duration("took", took))
	}
	return fields
}

var (
	_ Hooks = NopHooks{}
	_ Hooks = (*LogReporter)(nil)
)
