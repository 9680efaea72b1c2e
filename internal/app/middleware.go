package app

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Headers carrying the caller identity resolved by the upstream gateway.
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderActorID  = "X-Actor-ID"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// PrincipalMiddleware lifts the tenant and actor headers into the request context.
// Requests without them pass through unauthenticated; the capability gate rejects them.
func PrincipalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, errT := strconv.ParseInt(r.Header.Get(HeaderTenantID), 10, 64)
		actorID, errA := strconv.ParseInt(r.Header.Get(HeaderActorID), 10, 64)
		if errT == nil && errA == nil {
			p := shared.Principal{TenantID: tenantID, ActorID: actorID}
			if p.Valid() {
				r = r.WithContext(shared.ContextWithPrincipal(r.Context(), p))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// tenantKey rate-limits per tenant, falling back to the client IP.
func tenantKey(r *http.Request) (string, error) {
	if tenant := r.Header.Get(HeaderTenantID); tenant != "" {
		return "tenant:" + tenant, nil
	}
	return httprate.KeyByIP(r)
}

// MiddlewareStack installs the ledger middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}
	limit := 120
	if cfg.Config != nil && cfg.Config.RateLimitPerMinute > 0 {
		limit = cfg.Config.RateLimitPerMinute
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		PrincipalMiddleware,
		httprate.Limit(limit, time.Minute, httprate.WithKeyFuncs(tenantKey)),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, func(next http.Handler) http.Handler {
			return cfg.Metrics.Middleware(next)
		})
	}
	return middlewares
}
