// Package metrics exposes render instrumentation in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "imagevise"

// Collector owns a private registry with the render metrics.
type Collector struct {
	registry  *prometheus.Registry
	namespace string

	stageDuration    *prometheus.HistogramVec
	operatorDuration *prometheus.HistogramVec
	responses        *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	liveImages       prometheus.Gauge
}

// NewCollector creates a Collector. An empty namespace means DefaultNamespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{
		registry:  prometheus.NewRegistry(),
		namespace: namespace,
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_stage_duration_seconds",
			Help:      "Time spent in each render stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"stage", "outcome"}),
		operatorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operator_duration_seconds",
			Help:      "Time spent applying each pipeline operator.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"operator", "outcome"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Render responses by HTTP status.",
		}, []string{"status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "End to end HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		liveImages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_images",
			Help:      "Decoded image layers not yet released.",
		}),
	}

	c.registry.MustRegister(
		c.stageDuration,
		c.operatorDuration,
		c.responses,
		c.requestDuration,
		c.liveImages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveLimiter exports the render slot capacity and a gauge that samples
// inFlight on every scrape. Call it once per collector.
func (c *Collector) ObserveLimiter(capacity int, inFlight func() int) {
	c.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Name:      "render_slots",
			Help:      "Renders allowed to run at the same time.",
		}, func() float64 { return float64(capacity) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Name:      "renders_in_flight",
			Help:      "Renders currently holding a slot.",
		}, func() float64 { return float64(inFlight()) }),
	)
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveStage records the duration of a render stage.
func (c *Collector) ObserveStage(stage string, elapsed time.Duration, err error) {
	c.stageDuration.WithLabelValues(stage, outcome(err)).Observe(elapsed.Seconds())
}

// ObserveOperator records the duration of one pipeline operator.
func (c *Collector) ObserveOperator(name string, elapsed time.Duration, err error) {
	c.operatorDuration.WithLabelValues(name, outcome(err)).Observe(elapsed.Seconds())
}

// ObserveResponse counts a finished render response.
func (c *Collector) ObserveResponse(status int) {
	c.responses.WithLabelValues(strconv.Itoa(status)).Inc()
}

// ImagesAllocated adds n decoded layers to the live gauge.
func (c *Collector) ImagesAllocated(n int) {
	c.liveImages.Add(float64(n))
}

// ImagesReleased removes n released layers from the live gauge.
func (c *Collector) ImagesReleased(n int) {
	c.liveImages.Sub(float64(n))
}

// Middleware records the latency of every request passing through.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		c.requestDuration.
			WithLabelValues(r.Method, strconv.Itoa(wrapped.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
