// Package core provides the HTTP chassis for the site optimization service:
// a chi router with cross-cutting middleware (recovery, request IDs, logging,
// timeouts), the response envelope, request validation, and the health
// endpoint. Domain handlers mount themselves onto the router via registrars,
// keeping core free of handler imports.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"voltsite/internal/config"
)

// defaultRequestTimeout bounds one request end to end, including the full
// pipeline run with its upstream calls.
const defaultRequestTimeout = 120 * time.Second

// RouteRegistrar mounts a group of domain routes onto the v1 router. The
// application entry point supplies these, avoiding an import cycle between
// core and the handler packages.
type RouteRegistrar func(r chi.Router)

// Server bundles the router with the dependencies every handler needs.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// V1RouteRegistrars are invoked by MountRoutes to populate /v1.
	V1RouteRegistrars []RouteRegistrar

	// HealthProbes are checked by the health endpoint. Optional.
	HealthProbes []HealthProbe

	router *chi.Mux
}

// NewServer initializes the chassis. Routes are mounted separately via
// MountRoutes so tests can customize registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// MountRoutes registers global middleware, the /v1 route groups, and the
// top-level health endpoint. Middleware order matters: recovery outermost,
// then timeout, request ID, security headers, logging.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger))

	s.router.Route("/v1", func(r chi.Router) {
		for _, registrar := range s.V1RouteRegistrars {
			registrar(r)
		}
	})

	s.router.Get("/health", s.HandleHealth)
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs graceful termination of server-owned resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	s.Logger.Info("server shutdown complete")
	return nil
}
