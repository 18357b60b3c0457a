package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

// NewRouter creates and configures the main application router.
// Collectors are registered with registry, which also backs /metrics.
func NewRouter(cfg *config.Config, service ports.LinkService, registry *prometheus.Registry) http.Handler {
	// Initialize Handlers
	metrics := NewMetrics(registry)
	h := NewHTTPHandler(service, metrics, cfg.BaseURL)

	// Initialize Middleware
	mw := NewMiddleware(cfg)
	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Initialize Auth Handler
	authHandler := NewAuthHandler(cfg)

	r := mux.NewRouter()
	r.Use(
		hlog.NewHandler(log.Logger),
		hlog.RequestIDHandler("req_id", "X-Request-Id"),
		hlog.RemoteAddrHandler("ip"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
	)

	// Public Routes
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.Handle("/open/{short_code}", metrics.instrument("redirect", limiter.Limit(http.HandlerFunc(h.Redirect)))).Methods(http.MethodGet)
	r.HandleFunc("/auth/google/login", authHandler.Login).Methods(http.MethodGet)
	r.HandleFunc("/auth/google/callback", authHandler.Callback).Methods(http.MethodGet)
	r.HandleFunc("/auth/google/logout", authHandler.Logout).Methods(http.MethodGet)

	// API Routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Handle("/links", metrics.instrument("create", mw.OptionalAuth(http.HandlerFunc(h.Create)))).Methods(http.MethodPost)
	api.Handle("/links", metrics.instrument("list", mw.AuthMiddleware(http.HandlerFunc(h.List)))).Methods(http.MethodGet)
	api.Handle("/links/{short_code}", metrics.instrument("get", mw.AuthMiddleware(http.HandlerFunc(h.Get)))).Methods(http.MethodGet)
	api.Handle("/links/{short_code}", metrics.instrument("update", mw.AuthMiddleware(http.HandlerFunc(h.Update)))).Methods(http.MethodPatch)
	api.Handle("/links/{short_code}", metrics.instrument("delete", mw.AuthMiddleware(http.HandlerFunc(h.Delete)))).Methods(http.MethodDelete)

	return r
}
