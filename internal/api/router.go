package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

const (
	defaultRateLimitRPS   = 25
	defaultRateLimitBurst = 50
)

// RouterOption configures the behaviour of NewRouter.
type RouterOption func(*routerConfig)

// WithRateLimiter overrides the default request rate limiter (primarily for tests).
func WithRateLimiter(limiter rateLimiter) RouterOption {
	return func(cfg *routerConfig) {
		cfg.rateLimiter = limiter
	}
}

// WithRateLimit installs a token bucket limiter. A non-positive rate
// disables limiting.
func WithRateLimit(ratePerSecond float64, burst int) RouterOption {
	return func(cfg *routerConfig) {
		if ratePerSecond <= 0 {
			cfg.rateLimiter = nil
			return
		}
		cfg.rateLimiter = newTokenBucketLimiter(ratePerSecond, burst)
	}
}

type routerConfig struct {
	rateLimiter rateLimiter
}

// NewRouter creates the record routes. The result is meant to be mounted
// under {API_V1_STR}/airtable.
func NewRouter(handler *Handler, opts ...RouterOption) http.Handler {
	cfg := routerConfig{
		rateLimiter: newTokenBucketLimiter(defaultRateLimitRPS, defaultRateLimitBurst),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)
	if cfg.rateLimiter != nil {
		r.Use(RateLimit(cfg.rateLimiter))
	}

	r.Post("/create", handler.handleCreate)
	r.Put("/update/{record_id}", handler.handleUpdate)
	r.Get("/", handler.handleList)
	r.Get("/{record_id}", handler.handleGet)
	r.Delete("/{record_id}", handler.handleDelete)

	return r
}

// NotFound answers unknown paths with a detail envelope.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Not Found")
}

// MethodNotAllowed answers known paths hit with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}
