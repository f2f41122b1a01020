package middleware

import (
	"context"
	"net/http"
	"time"
)

type timingContextKey string

const (
	// StartTimeKey is the key for request start time in context
	StartTimeKey timingContextKey = "start_time"
)

// TimingMiddleware records request start time for calculating processing duration
func TimingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), StartTimeKey, time.Now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestDuration returns the time spent since TimingMiddleware saw
// the request, or zero when the middleware is not installed.
func GetRequestDuration(ctx context.Context) time.Duration {
	if startTime, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return time.Since(startTime)
	}
	return 0
}
