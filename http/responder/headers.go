package responder

import (
	"fmt"
	"net/http"
)

const (
	// ErrorMaxAge applies to 3xx and 4xx error responses.
	ErrorMaxAge = 600
	// IntermittentMaxAge applies to 5xx responses, which may heal quickly.
	IntermittentMaxAge = 5
)

// 默认响应头，所有响应都会带上
var defaultHeaders = map[string]string{
	"Allow":                  "GET",
	"X-Content-Type-Options": "nosniff",
}

// ApplyDefaultHeaders sets the headers every response carries.
func ApplyDefaultHeaders(w http.ResponseWriter) {
	h := w.Header()
	for k, v := range defaultHeaders {
		h.Set(k, v)
	}
}

// ErrorCacheControl returns the Cache-Control value for an error status.
func ErrorCacheControl(status int) string {
	if status >= 300 && status < 500 {
		return fmt.Sprintf("public, max-age=%d", ErrorMaxAge)
	}
	return fmt.Sprintf("public, max-age=%d", IntermittentMaxAge)
}

// ImageCacheControl returns the Cache-Control value for a rendered image.
func ImageCacheControl(maxAge int) string {
	return fmt.Sprintf("public, no-transform, max-age=%d", maxAge)
}
