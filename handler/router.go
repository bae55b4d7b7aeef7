// Package handler is the HTTP binding of the user service.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/samandartukhtayev/user-registry/metrics"
	"github.com/samandartukhtayev/user-registry/service"
)

// RouterOptions configures the optional parts of the router.
type RouterOptions struct {
	// ErrorMode is config.ErrorModeCompat or config.ErrorModeDetailed.
	ErrorMode string
	// Health enables GET /healthz when set.
	Health Pinger
	// Metrics instruments every request when set.
	Metrics *metrics.HTTPMetrics
	// MetricsHandler is served at MetricsPath when both are set.
	MetricsHandler http.Handler
	MetricsPath    string
}

// NewRouter wires the users collection, health and metrics endpoints.
func NewRouter(users *service.UserService, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(WithRequestID)
	r.Use(WithLogging)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	if opts.Health != nil {
		r.Get("/healthz", HandleHealthz(opts.Health))
	}
	if opts.MetricsHandler != nil && opts.MetricsPath != "" {
		r.Method(http.MethodGet, opts.MetricsPath, opts.MetricsHandler)
	}

	r.Route("/users", NewUserHandler(users, opts.ErrorMode).Routes)

	return r
}
