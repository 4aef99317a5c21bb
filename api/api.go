// Package api is the HTTP boundary of authcore. It exposes the auth
// endpoints as JSON over chi, applies the per-IP rate limit, and maps the
// auth package's error taxonomy onto HTTP statuses. Handlers never leak
// store or internal detail to the client; faults are logged with a
// correlation id and answered with a fixed generic message.
package api

import (
	_ "embed"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/harborline/authcore/audit"
	"github.com/harborline/authcore/auth"
	"github.com/harborline/authcore/ratelimit"
)

const (
	defaultRateMax    = 10
	defaultRateWindow = 5 * time.Minute
)

// API holds the dependencies needed by the auth handlers.
type API struct {
	auth    *auth.Manager
	limiter *ratelimit.Limiter
	audit   *audit.Logger

	trustedProxies []netip.Prefix
	rateMax        int
	rateWindow     time.Duration
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithTrustedProxies sets the CIDR ranges whose proxy headers
// (X-Forwarded-For and friends) are believed when resolving the client IP.
// Without it, RemoteAddr is always used.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) { a.trustedProxies = prefixes }
}

// WithRatePolicy sets the per-IP request cap for the auth endpoints.
func WithRatePolicy(max int, window time.Duration) Option {
	return func(a *API) {
		a.rateMax = max
		a.rateWindow = window
	}
}

// New creates an API over the auth manager, rate limiter, and audit logger.
func New(mgr *auth.Manager, limiter *ratelimit.Limiter, logger *audit.Logger, opts ...Option) *API {
	a := &API{
		auth:       mgr,
		limiter:    limiter,
		audit:      logger,
		rateMax:    defaultRateMax,
		rateWindow: defaultRateWindow,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns a chi.Router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(a.RecoveryMiddleware)

	r.Get("/health", a.Health)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Route("/auth", func(r chi.Router) {
		r.Use(a.RateLimitMiddleware)
		r.Post("/login", a.Login)
		r.Post("/register", a.Register)
		r.Post("/logout", a.Logout)
		r.Post("/validate", a.Validate)
		r.Post("/change-password", a.ChangePassword)
	})

	return r
}

// Health handles GET /health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
