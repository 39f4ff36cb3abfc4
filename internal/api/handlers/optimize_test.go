package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"voltsite/internal/core"
	"voltsite/internal/types"
)

type fakeOptimizeService struct {
	gotReq types.OptimizeRequest
	resp   *types.OptimizeResponse
	err    error
}

func (f *fakeOptimizeService) Optimize(_ context.Context, req types.OptimizeRequest) (*types.OptimizeResponse, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newOptimizeRouter(svc OptimizeServiceInterface) http.Handler {
	h := NewOptimizeHandler(svc, core.NewValidator(discardLogger()), discardLogger())
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func sampleResponse() *types.OptimizeResponse {
	return &types.OptimizeResponse{
		RequestID: "req-1",
		Recommendations: []types.Recommendation{{
			Location: types.LocationInfo{Name: "Salem Central"},
			Scores:   types.SiteScores{Overall: 7.7},
		}},
		ProcessingTimeSeconds: 1.5,
		Timestamp:             time.Now().UTC(),
		Metadata: types.ResponseMetadata{
			Errors: []string{},
			AgentsExecuted: []types.StageResult{
				{StageName: "traffic_analysis", Status: types.StageSuccess},
			},
		},
	}
}

func TestHandleOptimize_Success(t *testing.T) {
	svc := &fakeOptimizeService{resp: sampleResponse()}
	router := newOptimizeRouter(svc)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/optimize",
		strings.NewReader(`{"location":"Salem","radius_km":30}`))
	router.ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Result().StatusCode, w.Body.String())
	}

	var body types.OptimizeResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.RequestID != "req-1" || len(body.Recommendations) != 1 {
		t.Errorf("unexpected body: %+v", body)
	}

	// Defaults are applied before the service sees the request.
	if svc.gotReq.RadiusKM != 30 {
		t.Errorf("radius = %d, want explicit 30", svc.gotReq.RadiusKM)
	}
	if svc.gotReq.Budget != 5000000 || svc.gotReq.StationType != types.StationFast || svc.gotReq.MaxRecommendations != 5 {
		t.Errorf("defaults not applied: %+v", svc.gotReq)
	}
}

func TestHandleOptimize_InvalidJSON(t *testing.T) {
	router := newOptimizeRouter(&fakeOptimizeService{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader(`{"location":`))
	router.ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Result().StatusCode)
	}
	var body core.APIErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Error.Code != string(types.ErrCodeValidationInvalidJSON) {
		t.Errorf("code = %q", body.Error.Code)
	}
}

func TestHandleOptimize_MissingLocation(t *testing.T) {
	router := newOptimizeRouter(&fakeOptimizeService{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader(`{"radius_km":30}`))
	router.ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Result().StatusCode)
	}
	var body core.APIErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Error.Code != string(types.ErrCodeValidationMissingLocation) {
		t.Errorf("code = %q, want missing location", body.Error.Code)
	}
}

func TestHandleOptimize_InvalidStationType(t *testing.T) {
	router := newOptimizeRouter(&fakeOptimizeService{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/optimize",
		strings.NewReader(`{"location":"Salem","station_type":"warp"}`))
	router.ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Result().StatusCode)
	}
	var body core.APIErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Error.Code != string(types.ErrCodeValidationInvalidStation) {
		t.Errorf("code = %q, want invalid station type", body.Error.Code)
	}
}

func TestHandleOptimize_ServiceError(t *testing.T) {
	svc := &fakeOptimizeService{err: errors.New("executor wiring broken")}
	router := newOptimizeRouter(svc)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/optimize", strings.NewReader(`{"location":"Salem"}`))
	router.ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Result().StatusCode)
	}
}
