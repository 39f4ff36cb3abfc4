// Package handlers contains the HTTP handler implementations for the site
// optimization API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"voltsite/internal/core"
	"voltsite/internal/types"
)

// OptimizeServiceInterface is the service contract for the optimization
// handler. Defined locally to avoid tight coupling per the handler injection
// pattern.
type OptimizeServiceInterface interface {
	Optimize(ctx context.Context, req types.OptimizeRequest) (*types.OptimizeResponse, error)
}

// OptimizeHandler maps HTTP requests to the optimization service.
type OptimizeHandler struct {
	service   OptimizeServiceInterface
	validator *core.Validator
	logger    *slog.Logger
}

// NewOptimizeHandler creates a handler with the provided dependencies.
func NewOptimizeHandler(svc OptimizeServiceInterface, val *core.Validator, logger *slog.Logger) *OptimizeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OptimizeHandler{
		service:   svc,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the optimization endpoints onto the mux.
func (h *OptimizeHandler) RegisterRoutes(r chi.Router) {
	r.Post("/optimize", h.HandleOptimize)
}

// HandleOptimize handles POST /v1/optimize.
//
// Validation failures return 400; once the request is accepted the response
// is always success-shaped, with degraded analyses surfaced through
// metadata.errors rather than an error status.
func (h *OptimizeHandler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req types.OptimizeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	req.ApplyDefaults()
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	resp, err := h.service.Optimize(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "optimization failed", "error", err)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, resp)
}
