package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Request errors. The client sent something that can never render.
	ErrorTypeInvalidRequest   ErrorType = "invalid_request"
	ErrorTypeSignature        ErrorType = "signature"
	ErrorTypeURL              ErrorType = "url"
	ErrorTypeMissingParameter ErrorType = "missing_parameter"
	ErrorTypeInvalidParameter ErrorType = "invalid_parameter"

	// Source errors
	ErrorTypeForbidden         ErrorType = "forbidden"
	ErrorTypeTooLarge          ErrorType = "too_large"
	ErrorTypeUpstream          ErrorType = "upstream"
	ErrorTypeUnsupportedFormat ErrorType = "unsupported_format"
	ErrorTypeEmptyRender       ErrorType = "empty_render"

	// System errors
	ErrorTypeUnavailable ErrorType = "unavailable"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// permanentTypes lists the failures a client should not retry.
var permanentTypes = map[ErrorType]bool{
	ErrorTypeInvalidRequest:    true,
	ErrorTypeSignature:         true,
	ErrorTypeURL:               true,
	ErrorTypeMissingParameter:  true,
	ErrorTypeInvalidParameter:  true,
	ErrorTypeUnsupportedFormat: true,
	ErrorTypeEmptyRender:       true,
}

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	InnerError error                  `json:"-"`
	Stack      []string               `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.InnerError != nil {
		return e.InnerError.Error()
	}
	return string(e.Type)
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// WithMessage adds a message to the error
func (e *AppError) WithMessage(msg string) *AppError {
	e.Message = msg
	return e
}

// WithCode adds a code to the error
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithHTTPStatus sets the HTTP status code
func (e *AppError) WithHTTPStatus(status int) *AppError {
	e.HTTPStatus = status
	return e
}

// WithInnerError sets the inner error
func (e *AppError) WithInnerError(err error) *AppError {
	e.InnerError = err
	return e
}

// WithStack captures the call stack
func (e *AppError) WithStack() *AppError {
	e.Stack = captureStack(3)
	return e
}

// Is reports whether target is an AppError of the same type. Sentinel
// values like ErrSignature work with errors.Is.
func (e *AppError) Is(target error) bool {
	if targetApp, ok := target.(*AppError); ok {
		return e.Type == targetApp.Type
	}
	return false
}

// Permanent reports whether the error is client-attributable and must not be retried.
func (e *AppError) Permanent() bool {
	return permanentTypes[e.Type]
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidRequest    = &AppError{Type: ErrorTypeInvalidRequest}
	ErrSignature         = &AppError{Type: ErrorTypeSignature}
	ErrURL               = &AppError{Type: ErrorTypeURL}
	ErrMissingParameter  = &AppError{Type: ErrorTypeMissingParameter}
	ErrInvalidParameter  = &AppError{Type: ErrorTypeInvalidParameter}
	ErrForbidden         = &AppError{Type: ErrorTypeForbidden}
	ErrTooLarge          = &AppError{Type: ErrorTypeTooLarge}
	ErrUpstream          = &AppError{Type: ErrorTypeUpstream}
	ErrUnsupportedFormat = &AppError{Type: ErrorTypeUnsupportedFormat}
	ErrEmptyRender       = &AppError{Type: ErrorTypeEmptyRender}
	ErrUnavailable       = &AppError{Type: ErrorTypeUnavailable}
	ErrInternal          = &AppError{Type: ErrorTypeInternal}
)

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Code:    string(errType),
	}
}

// Newf creates a new AppError with a formatted message
func Newf(errType ErrorType, format string, args ...any) *AppError {
	return New(errType, fmt.Sprintf(format, args...))
}

// FromError converts a standard error to AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Type:       ErrorTypeUnknown,
		Message:    err.Error(),
		InnerError: err,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) *AppError {
	return FromError(err).WithMessage(message)
}

// WrapWithType wraps an error with a specific type
func WrapWithType(err error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		InnerError: err,
		Code:       string(errType),
	}
}

// Request errors

func NewInvalidRequest(message string) *AppError {
	return New(ErrorTypeInvalidRequest, message).WithHTTPStatus(http.StatusBadRequest)
}

func NewSignature(message string) *AppError {
	return New(ErrorTypeSignature, message).WithHTTPStatus(http.StatusBadRequest)
}

func NewURL(message string) *AppError {
	return New(ErrorTypeURL, message).WithHTTPStatus(http.StatusBadRequest)
}

func NewMissingParameter(name string) *AppError {
	return New(ErrorTypeMissingParameter, fmt.Sprintf("the %s parameter is required", name)).
		WithDetail("parameter", name).
		WithHTTPStatus(http.StatusBadRequest)
}

func NewInvalidParameter(operator string, reason string) *AppError {
	return New(ErrorTypeInvalidParameter, fmt.Sprintf("invalid parameters for %s: %s", operator, reason)).
		WithDetail("operator", operator).
		WithHTTPStatus(http.StatusBadRequest)
}

// Source errors

// NewAccess is the error for sources outside the allow-lists.
func NewAccess(message string) *AppError {
	return New(ErrorTypeForbidden, message).WithHTTPStatus(http.StatusForbidden)
}

// NewTooLarge is the error for sources above the size ceiling.
func NewTooLarge(message string, status int) *AppError {
	return New(ErrorTypeTooLarge, message).WithHTTPStatus(status)
}

// NewUpstream carries the status the upstream answered with.
func NewUpstream(status int, url string) *AppError {
	return New(ErrorTypeUpstream, fmt.Sprintf("Unfortunate upstream response %d on %s", status, url)).
		WithDetail("url", url).
		WithDetail("upstream_status", status).
		WithHTTPStatus(status)
}

// NewUpstreamFailure is used when the upstream could not be reached at all.
func NewUpstreamFailure(err error, url string) *AppError {
	return WrapWithType(err, ErrorTypeUpstream, fmt.Sprintf("Upstream fetch failed on %s: %v", url, err)).
		WithDetail("url", url).
		WithHTTPStatus(http.StatusBadGateway)
}

func NewUnsupportedFormat(message string, status int) *AppError {
	if status == 0 {
		status = http.StatusBadRequest
	}
	return New(ErrorTypeUnsupportedFormat, message).WithHTTPStatus(status)
}

func NewEmptyRender() *AppError {
	return New(ErrorTypeEmptyRender, "The rendered image was empty").WithHTTPStatus(http.StatusBadRequest)
}

// NewUnavailable is returned when the service is saturated.
func NewUnavailable(message string) *AppError {
	return New(ErrorTypeUnavailable, message).WithHTTPStatus(http.StatusServiceUnavailable)
}

// NewInternal carries no HTTP status. It is reported as a server failure.
func NewInternal(message string) *AppError {
	return New(ErrorTypeInternal, message)
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// IsPermanent reports whether err is one of the client-attributable failures.
func IsPermanent(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Permanent()
	}
	return false
}

// StatusOf returns the HTTP status carried by err, if any.
func StatusOf(err error) (int, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus > 0 {
		return appErr.HTTPStatus, true
	}
	return 0, false
}

// Recover converts a recovered panic value into an internal AppError.
// It returns nil when v is nil.
func Recover(v any) *AppError {
	if v == nil {
		return nil
	}
	var err error
	switch x := v.(type) {
	case error:
		err = x
	case string:
		err = errors.New(x)
	default:
		err = fmt.Errorf("%v", x)
	}
	return WrapWithType(err, ErrorTypeInternal, "panic recovered: "+err.Error()).WithStack()
}

// captureStack captures the call stack
func captureStack(skip int) []string {
	var stack []string
	for i := skip; i < 10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		funcName := fn.Name()
		if idx := strings.LastIndex(funcName, "/"); idx >= 0 {
			funcName = funcName[idx+1:]
		}

		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, funcName))
	}
	return stack
}
