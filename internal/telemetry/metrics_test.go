package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsUseInjectedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.JobFinished("completed", 3*time.Second)
	m.JobFinished("cancelled", time.Second)
	m.StageCompleted("rendering", 2*time.Second)
	m.ReferenceFailed()
	m.StoreError("update")
	m.StoreError("update")

	if got := testutil.ToFloat64(m.jobsTotal.WithLabelValues("completed")); got != 1 {
		t.Fatalf("jobs_total{completed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.storeErrors.WithLabelValues("update")); got != 2 {
		t.Fatalf("store_errors_total{update} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.referenceFailures); got != 1 {
		t.Fatalf("reference_failures_total = %v, want 1", got)
	}

	// A second registry must accept a fresh set of collectors.
	NewMetrics(prometheus.NewRegistry())
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/design-jobs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"job_1", "job_2"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/design-jobs/"+id, nil))
	}

	got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/design-jobs/{id}", "404"))
	if got != 2 {
		t.Fatalf("requests_total = %v, want 2", got)
	}
}

func TestInitTracingWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "roomdesign-test", "")
	if err != nil {
		t.Fatalf("InitTracing returned error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}
