package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesLedgerCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObservePosting("posted")
	metrics.ObservePosting("posted")
	metrics.ObservePosting("unbalanced")
	metrics.ObserveVoid("voided")

	body := scrape(t, metrics)
	require.Contains(t, body, `odyssey_ledger_postings_total{outcome="posted"} 2`)
	require.Contains(t, body, `odyssey_ledger_postings_total{outcome="unbalanced"} 1`)
	require.Contains(t, body, `odyssey_ledger_voids_total{outcome="voided"} 1`)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.True(t, strings.Contains(body, `http_requests_total{code="418",route="/test"} 1`), body)
	require.Contains(t, body, `http_request_duration_seconds_bucket{route="/test"`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObservePosting("posted")
	m.ObserveVoid("voided")
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
