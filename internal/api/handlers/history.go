package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"voltsite/internal/core"
	"voltsite/internal/store"
	"voltsite/internal/types"
)

// HistoryStore is the persistence contract for the history handler.
// Satisfied by *store.RunRepository.
type HistoryStore interface {
	GetByRequestID(ctx context.Context, requestID string) (*store.StoredRun, error)
	ListRecent(ctx context.Context, limit int) ([]*store.StoredRun, error)
	FindNearby(ctx context.Context, lat, lon, radiusKM float64, limit int) ([]store.NearbySite, error)
}

// HistoryHandler serves previously archived optimization runs.
type HistoryHandler struct {
	store  HistoryStore
	logger *slog.Logger
}

// NewHistoryHandler creates a handler over the archived-run store.
func NewHistoryHandler(st HistoryStore, logger *slog.Logger) *HistoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryHandler{store: st, logger: logger}
}

// RegisterRoutes mounts the history endpoints onto the mux.
func (h *HistoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/runs", h.HandleListRuns)
	r.Get("/runs/{requestID}", h.HandleGetRun)
	r.Get("/sites/nearby", h.HandleNearbySites)
}

// runSummary is the list-view projection of a stored run.
type runSummary struct {
	RequestID         string            `json:"request_id"`
	Location          string            `json:"location"`
	StationType       types.StationType `json:"station_type"`
	Recommendations   int               `json:"recommendations"`
	ProcessingSeconds float64           `json:"processing_time_seconds"`
	CreatedAt         string            `json:"created_at"`
}

// HandleListRuns handles GET /v1/runs.
func (h *HistoryHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationMissingField,
				"limit must be an integer between 1 and 100",
				err,
			))
			return
		}
		limit = n
	}

	runs, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	summaries := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, runSummary{
			RequestID:         run.RequestID,
			Location:          run.Location,
			StationType:       run.StationType,
			Recommendations:   len(run.Recommendations),
			ProcessingSeconds: run.ProcessingSeconds,
			CreatedAt:         run.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	core.JSON(w, r, http.StatusOK, map[string]any{"runs": summaries})
}

// HandleGetRun handles GET /v1/runs/{requestID}.
func (h *HistoryHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	if requestID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"request ID path parameter is required",
			nil,
		))
		return
	}

	run, err := h.store.GetByRequestID(r.Context(), requestID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, run)
}

// HandleNearbySites handles GET /v1/sites/nearby?lat=&lon=&radius_km=.
func (h *HistoryHandler) HandleNearbySites(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"lat must be a number between -90 and 90",
			err,
		))
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"lon must be a number between -180 and 180",
			err,
		))
		return
	}

	radius := 25.0
	if raw := q.Get("radius_km"); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 || radius > 200 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidRadius,
				"radius_km must be a number between 1 and 200",
				err,
			))
			return
		}
	}

	sites, err := h.store.FindNearby(r.Context(), lat, lon, radius, 10)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, map[string]any{"sites": sites})
}
