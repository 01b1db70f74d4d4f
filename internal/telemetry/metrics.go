package telemetry

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for job processing and the HTTP surface.
type Metrics struct {
	jobsTotal          *prometheus.CounterVec
	jobDuration        prometheus.Histogram
	stageDuration      *prometheus.HistogramVec
	referenceFailures  prometheus.Counter
	storeErrors        *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpRequestLatency *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "roomdesign",
				Name:      "jobs_total",
				Help:      "Design jobs that reached a terminal state.",
			},
			[]string{"result"},
		),
		jobDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "roomdesign",
				Name:      "job_duration_seconds",
				Help:      "Wall time from job start to terminal state.",
				Buckets:   []float64{1, 5, 10, 20, 40, 60, 90, 120, 180, 300},
			},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "roomdesign",
				Name:      "stage_duration_seconds",
				Help:      "Duration of each pipeline stage.",
				Buckets:   []float64{0.05, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
			},
			[]string{"stage"},
		),
		referenceFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "roomdesign",
				Name:      "reference_failures_total",
				Help:      "Reference images whose analysis failed and was replaced by a stub.",
			},
		),
		storeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "roomdesign",
				Name:      "store_errors_total",
				Help:      "Job store operations that failed and were tolerated.",
			},
			[]string{"op"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "roomdesign",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"method", "route", "code"},
		),
		httpRequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "roomdesign",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
	reg.MustRegister(
		m.jobsTotal, m.jobDuration, m.stageDuration, m.referenceFailures,
		m.storeErrors, m.httpRequestsTotal, m.httpRequestLatency,
	)
	return m
}

// JobFinished records a terminal job outcome.
func (m *Metrics) JobFinished(result string, elapsed time.Duration) {
	m.jobsTotal.WithLabelValues(result).Inc()
	m.jobDuration.Observe(elapsed.Seconds())
}

// StageCompleted records how long a pipeline stage took.
func (m *Metrics) StageCompleted(stage string, elapsed time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ReferenceFailed counts a substituted reference analysis.
func (m *Metrics) ReferenceFailed() {
	m.referenceFailures.Inc()
}

// StoreError counts a tolerated store failure.
func (m *Metrics) StoreError(op string) {
	m.storeErrors.WithLabelValues(op).Inc()
}

// Middleware records request count and latency labelled by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.code)).Inc()
		m.httpRequestLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.code = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Flush keeps SSE streaming working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets WebSocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("telemetry: response writer does not support hijacking")
	}
	r.code = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
