package core

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"voltsite/internal/types"
)

// Validator wraps go-playground/validator and translates tag failures into
// the domain's validation error codes.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator ready to check request DTOs.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate: validator.New(),
		logger:   logger,
	}
}

// fieldErrorCodes maps OptimizeRequest struct fields to their specific error
// codes. Fields not listed fall back to the generic missing-field code.
var fieldErrorCodes = map[string]types.ErrorCode{
	"Location":           types.ErrCodeValidationMissingLocation,
	"RadiusKM":           types.ErrCodeValidationInvalidRadius,
	"Budget":             types.ErrCodeValidationInvalidBudget,
	"StationType":        types.ErrCodeValidationInvalidStation,
	"MaxRecommendations": types.ErrCodeValidationMaxResults,
}

// ValidateStruct checks the given DTO against its validate tags. On failure
// it returns an AppError for the first violated field, with the field name
// and failing tag in the details.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	first := errs[0]
	code, ok := fieldErrorCodes[first.StructField()]
	if !ok {
		code = types.ErrCodeValidationMissingField
	}

	return types.NewAppErrorWithDetails(
		code,
		"invalid value for "+first.Field(),
		err,
		map[string]any{
			"field":      first.Field(),
			"constraint": first.Tag(),
		},
	)
}
