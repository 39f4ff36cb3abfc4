package core

import (
	"errors"
	"log/slog"
	"testing"

	"voltsite/internal/types"
)

func TestValidateStruct_Valid(t *testing.T) {
	v := NewValidator(slog.New(slog.DiscardHandler))
	req := types.OptimizeRequest{Location: "Salem"}
	req.ApplyDefaults()

	if err := v.ValidateStruct(req); err != nil {
		t.Errorf("ValidateStruct() error = %v", err)
	}
}

func TestValidateStruct_FieldCodes(t *testing.T) {
	v := NewValidator(slog.New(slog.DiscardHandler))

	tests := []struct {
		name     string
		req      types.OptimizeRequest
		wantCode types.ErrorCode
	}{
		{
			"missing location",
			types.OptimizeRequest{RadiusKM: 50, Budget: 5000000, StationType: types.StationFast, MaxRecommendations: 5},
			types.ErrCodeValidationMissingLocation,
		},
		{
			"radius too large",
			types.OptimizeRequest{Location: "Salem", RadiusKM: 500, Budget: 5000000, StationType: types.StationFast, MaxRecommendations: 5},
			types.ErrCodeValidationInvalidRadius,
		},
		{
			"budget too small",
			types.OptimizeRequest{Location: "Salem", RadiusKM: 50, Budget: 5000, StationType: types.StationFast, MaxRecommendations: 5},
			types.ErrCodeValidationInvalidBudget,
		},
		{
			"unknown station type",
			types.OptimizeRequest{Location: "Salem", RadiusKM: 50, Budget: 5000000, StationType: "warp", MaxRecommendations: 5},
			types.ErrCodeValidationInvalidStation,
		},
		{
			"too many results",
			types.OptimizeRequest{Location: "Salem", RadiusKM: 50, Budget: 5000000, StationType: types.StationFast, MaxRecommendations: 50},
			types.ErrCodeValidationMaxResults,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.req)
			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected AppError, got %v", err)
			}
			if appErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", appErr.Code, tt.wantCode)
			}
			if appErr.Details["field"] == "" {
				t.Error("details missing field name")
			}
		})
	}
}
