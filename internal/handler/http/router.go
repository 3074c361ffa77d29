package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig selects the optional parts of the router
type RouterConfig struct {
	Logger         *slog.Logger
	Limiter        RateLimiter // nil disables rate limiting
	EnableMetrics  bool
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter wires handlers and middleware onto a chi router
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"https://*", "http://*"}
	}

	r := chi.NewRouter()

	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health/live", h.HealthCheck)
	if cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		if cfg.Limiter != nil {
			r.Use(RateLimitMiddleware(cfg.Limiter, cfg.Logger))
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/openapi.json", ServeOpenAPISpec)
			r.Post("/urls", h.CreateURL)
			r.Get("/urls", h.ListURLs)
			r.Get("/urls/{shortcode}", h.GetURL)
			r.Get("/urls/{shortcode}/clicks", h.ListURLClicks)
			r.Get("/stats", h.GetStatistics)
			r.Get("/clicks", h.ListClicks)
		})

		r.Get("/{shortcode}", h.RedirectURL)
	})

	return r
}
