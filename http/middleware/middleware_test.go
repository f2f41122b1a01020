package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTraceIDMiddlewareGeneratesID(t *testing.T) {
	var seen string
	h := TraceIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetTraceIDFromRequest(r)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/q/sig", nil))

	if seen == "" {
		t.Fatal("expected a generated trace id")
	}
	if got := rr.Header().Get(TraceIDHeader); got != seen {
		t.Fatalf("response header %q does not match context %q", got, seen)
	}
}

func TestTraceIDMiddlewareKeepsIncomingID(t *testing.T) {
	var seen string
	h := TraceIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetTraceIDFromRequest(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/q/sig", nil)
	req.Header.Set(TraceIDHeader, "edge-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "edge-42" {
		t.Fatalf("expected incoming trace id, got %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/q/sig", nil)
	req.Header.Set(TraceIDHeader, strings.Repeat("x", 200))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if len(seen) > 128 {
		t.Fatalf("oversized trace id should have been replaced")
	}
}

func TestTimingMiddleware(t *testing.T) {
	var took time.Duration
	h := TimingMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		took = GetRequestDuration(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if took < 5*time.Millisecond {
		t.Fatalf("expected at least 5ms, got %s", took)
	}

	if d := GetRequestDuration(httptest.NewRequest(http.MethodGet, "/", nil).Context()); d != 0 {
		t.Fatalf("expected zero without middleware, got %s", d)
	}
}
