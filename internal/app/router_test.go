package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func TestRouterHealthz(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{RateLimitPerMinute: 100}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouterReadiness(t *testing.T) {
	healthy := PingFunc(func(context.Context) error { return nil })
	broken := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	router := NewRouter(RouterParams{Readiness: map[string]Pinger{"postgres": healthy}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	router = NewRouter(RouterParams{Readiness: map[string]Pinger{"redis": broken}})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}

func TestPrincipalMiddleware(t *testing.T) {
	cases := []struct {
		name    string
		tenant  string
		actor   string
		wantOK  bool
		wantTen int64
	}{
		{name: "both headers", tenant: "7", actor: "11", wantOK: true, wantTen: 7},
		{name: "missing actor", tenant: "7"},
		{name: "non numeric", tenant: "seven", actor: "11"},
		{name: "zero tenant", tenant: "0", actor: "11"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got shared.Principal
			var ok bool
			h := PrincipalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, ok = shared.PrincipalFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.tenant != "" {
				req.Header.Set(HeaderTenantID, tc.tenant)
			}
			if tc.actor != "" {
				req.Header.Set(HeaderActorID, tc.actor)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			require.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.wantTen, got.TenantID)
				assert.Equal(t, int64(11), got.ActorID)
			}
		})
	}
}

func TestRateLimitIsPerTenant(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{RateLimitPerMinute: 1}})

	call := func(tenant string) int {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(HeaderTenantID, tenant)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, call("1"))
	assert.Equal(t, http.StatusTooManyRequests, call("1"))
	assert.Equal(t, http.StatusOK, call("2"))
}
