package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, "http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, "http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestObserveFetchAndExport(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveFetch("financial_year", "ok", 120*time.Millisecond)
	metrics.ObserveFetch("financial_year", "error", time.Second)
	metrics.ObserveExport("csv", "ok")

	body := scrape(t, metrics)
	for _, want := range []string{
		`odyssey_ledger_fetch_total{endpoint="financial_year",outcome="ok"} 1`,
		`odyssey_ledger_fetch_total{endpoint="financial_year",outcome="error"} 1`,
		`odyssey_ledger_fetch_duration_seconds_count{endpoint="financial_year"} 2`,
		`odyssey_ledger_exports_total{format="csv",outcome="ok"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape, got: %s", want, body)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveFetch("range", "ok", time.Millisecond)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestRegistererExposesCustomCollectors(t *testing.T) {
	m := NewMetrics()
	warmed := prometheus.NewCounter(prometheus.CounterOpts{Name: "odyssey_test_warmed_total", Help: "test"})
	m.Registerer().MustRegister(warmed)
	warmed.Add(3)

	if body := scrape(t, m); !strings.Contains(body, "odyssey_test_warmed_total 3") {
		t.Fatalf("custom collector missing from scrape:\n%s", body)
	}
}
