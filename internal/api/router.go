package api

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/coachbook/server/internal/api/handlers"
	"github.com/coachbook/server/internal/api/middleware"
	"github.com/coachbook/server/internal/audit"
	"github.com/coachbook/server/internal/auth"
	"github.com/coachbook/server/internal/auth/oauth"
	"github.com/coachbook/server/internal/config"
	"github.com/coachbook/server/internal/domain/bookings"
	"github.com/coachbook/server/internal/domain/dashboard"
	"github.com/coachbook/server/internal/domain/users"
	"github.com/coachbook/server/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Dependencies are the services the router exposes over HTTP.
type Dependencies struct {
	Config      config.Config
	Logger      zerolog.Logger
	Users       *users.Service
	Bookings    *bookings.Service
	Dashboard   *dashboard.Service
	Cache       *dashboard.Cache
	Database    handlers.DatabaseProbe
	Sessions    *auth.SessionManager
	OAuth       *oauth.GoogleClient
	Audit       *audit.Logger
	RateLimiter *middleware.RateLimiter

	Version   string
	GitCommit string
	BuildDate string
}

// NewRouter builds the HTTP handler. Middleware that reads the matched route
// pattern wraps the mux directly so the pattern is visible after serving.
func NewRouter(deps Dependencies) (http.Handler, error) {
	cfg := deps.Config
	env := cfg.Environment
	secure := cfg.SecureCookies()

	csrfKey, err := auth.DeriveCSRFKey([]byte(cfg.Auth.SessionSecret))
	if err != nil {
		return nil, fmt.Errorf("derive csrf key: %w", err)
	}
	stateKey, err := auth.DeriveOAuthStateKey([]byte(cfg.Auth.SessionSecret))
	if err != nil {
		return nil, fmt.Errorf("derive oauth state key: %w", err)
	}

	var provider handlers.OAuthProvider
	if deps.OAuth != nil {
		provider = deps.OAuth
	}
	var cacheProbe handlers.CacheProbe
	if deps.Cache != nil {
		cacheProbe = deps.Cache
	}

	authHandler := handlers.NewAuthHandler(provider, oauth.NewStateStore(stateKey, secure), deps.Users, deps.Sessions, deps.Audit, secure, env)
	profileHandler := handlers.NewProfileHandler(deps.Users, env)
	bookingsHandler := handlers.NewBookingsHandler(deps.Bookings, env)
	dashboardHandler := handlers.NewDashboardHandler(deps.Dashboard, env)
	health := handlers.NewHealthChecker(deps.Database, cacheProbe, deps.Version, deps.GitCommit)

	csrf := middleware.CSRFProtection(csrfKey, secure, trustedHosts(cfg.CORS.AllowedOrigins))
	requireIdentity := middleware.RequireIdentity(env)

	// session: CSRF-checked, identity optional. protected: CSRF-checked, identity required.
	session := func(h http.HandlerFunc) http.Handler { return csrf(h) }
	protected := func(h http.HandlerFunc) http.Handler { return csrf(requireIdentity(h)) }

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", handlers.Healthz())
	mux.Handle("GET /readyz", health.Health())
	mux.Handle("GET /version", VersionHandler(deps.Version, deps.GitCommit, deps.BuildDate))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("GET /api/v1/openapi.json", OpenAPIHandler())

	mux.HandleFunc("GET /auth/google/login", authHandler.Login)
	mux.HandleFunc("GET /auth/google/callback", authHandler.Callback)
	mux.Handle("POST /auth/logout", session(authHandler.Logout))

	mux.Handle("GET /api/v1/me", session(profileHandler.Me))
	mux.Handle("GET /api/v1/csrf", session(profileHandler.CSRF))
	mux.Handle("POST /api/v1/me/role", protected(profileHandler.SetRole))
	mux.Handle("PUT /api/v1/me/position", protected(profileHandler.SetPosition))
	mux.Handle("PUT /api/v1/me/competencies", protected(profileHandler.SetCompetencies))
	mux.Handle("GET /api/v1/positions", protected(profileHandler.ListPositions))
	mux.Handle("POST /api/v1/positions", protected(profileHandler.CreatePosition))
	mux.Handle("GET /api/v1/competencies", protected(profileHandler.ListCompetencies))
	mux.Handle("POST /api/v1/competencies", protected(profileHandler.AddCompetency))

	mux.Handle("POST /api/v1/bookings", protected(bookingsHandler.CreateAsCoachee))
	mux.Handle("POST /api/v1/coach/bookings", protected(bookingsHandler.CreateAsCoach))
	mux.Handle("PUT /api/v1/bookings/{id}/status", protected(bookingsHandler.SetStatus))
	mux.Handle("PUT /api/v1/bookings/{id}/report", protected(bookingsHandler.SubmitReport))
	mux.Handle("PUT /api/v1/bookings/{id}/feedback", protected(bookingsHandler.SubmitFeedback))

	mux.Handle("GET /api/v1/dashboard/coach", protected(dashboardHandler.Coach))
	mux.Handle("GET /api/v1/dashboard/coachee", protected(dashboardHandler.Coachee))

	rateLimiter := deps.RateLimiter
	if rateLimiter == nil {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimit)
	}

	var handler http.Handler = mux
	handler = middleware.SpanRoute(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.Session(deps.Sessions, deps.Users, secure, env)(handler)
	handler = middleware.RequestSize(middleware.DefaultMaxBodySize)(handler)
	handler = rateLimiter.Middleware(handler)
	handler = middleware.CORS(cfg.CORS, deps.Logger)(handler)
	handler = middleware.SecurityHeaders(secure)(handler)
	handler = middleware.RequestLogging(deps.Logger)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	return handler, nil
}

// trustedHosts turns CORS origins into the host names gorilla/csrf compares
// against the Origin header.
func trustedHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, origin := range origins {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
