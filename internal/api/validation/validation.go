// Package validation decodes and validates request parameters.
package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"

	"github.com/formbricks/recommender/internal/api/response"
)

// DefaultLimit is used when the limit query parameter is absent.
const DefaultLimit = 10

var (
	// validate and decoder are package-level singletons that are safe for concurrent
	// read-only access. Registrations happen in init() only.
	validate *validator.Validate
	decoder  *form.Decoder
)

func init() {
	validate = validator.New()
	decoder = form.NewDecoder()

	if err := validate.RegisterValidation("entity_id", validateEntityID); err != nil {
		slog.Error("Failed to register entity_id validator", "error", err)
	}
}

// LimitParams holds the limit query parameter of the recommendation endpoints.
type LimitParams struct {
	Limit int `form:"limit" validate:"gte=1,lte=100"`
}

// SyncParams holds the query parameters of POST /v1/sync.
type SyncParams struct {
	Async bool `form:"async"`
}

// PathID holds a numeric path identifier.
type PathID struct {
	ID string `validate:"required,entity_id"`
}

// ValidateStruct validates a struct using go-playground/validator.
func ValidateStruct(s any) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationErrors(err)
	}

	return nil
}

// ValidationFailedError carries the field errors behind a failed validation.
type ValidationFailedError struct {
	Fields validator.ValidationErrors
}

func (e *ValidationFailedError) Error() string {
	messages := make([]string, 0, len(e.Fields))
	for _, fieldError := range e.Fields {
		messages = append(messages, formatFieldError(fieldError))
	}

	return "validation failed: " + strings.Join(messages, "; ")
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return &ValidationFailedError{Fields: validationErrors}
	}

	return err
}

// formatFieldError formats a single field validation error.
func formatFieldError(fieldError validator.FieldError) string {
	field := strings.ToLower(fieldError.Field())

	switch fieldError.Tag() {
	case "required":
		return field + " is required"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fieldError.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fieldError.Param())
	case "entity_id":
		return field + " must be a positive integer"
	default:
		return field + " is invalid"
	}
}

// GetValidationErrorDetails extracts field-level error details from validation errors.
func GetValidationErrorDetails(err error) []response.ErrorDetail {
	var failed *ValidationFailedError
	if !errors.As(err, &failed) {
		return nil
	}

	details := make([]response.ErrorDetail, 0, len(failed.Fields))
	for _, fieldError := range failed.Fields {
		details = append(details, response.ErrorDetail{
			Location: strings.ToLower(fieldError.Field()),
			Message:  formatFieldError(fieldError),
			Value:    fieldError.Value(),
		})
	}

	return details
}

// RespondValidationError writes a 400 with RFC 7807 Problem Details.
func RespondValidationError(w http.ResponseWriter, err error) {
	response.RespondProblem(w, response.ProblemDetails{
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
		Detail: err.Error(),
		Errors: GetValidationErrorDetails(err),
	})
}

// DecodeQueryParams decodes URL query parameters into a struct.
func DecodeQueryParams(r *http.Request, dst any) error {
	if err := decoder.Decode(dst, r.URL.Query()); err != nil {
		return fmt.Errorf("failed to decode query parameters: %w", err)
	}

	return nil
}

// ValidateAndDecodeQueryParams decodes and validates query parameters in one step.
func ValidateAndDecodeQueryParams(r *http.Request, dst any) error {
	if err := DecodeQueryParams(r, dst); err != nil {
		return err
	}

	return ValidateStruct(dst)
}

// ParseLimit reads ?limit=, defaulting to DefaultLimit, and enforces 1..100.
func ParseLimit(r *http.Request) (int, error) {
	params := LimitParams{Limit: DefaultLimit}
	if err := ValidateAndDecodeQueryParams(r, &params); err != nil {
		return 0, err
	}

	return params.Limit, nil
}

// ParsePathID reads the named path value as a positive int64.
func ParsePathID(r *http.Request, name string) (int64, error) {
	p := PathID{ID: r.PathValue(name)}
	if err := ValidateStruct(p); err != nil {
		return 0, err
	}

	id, err := strconv.ParseInt(p.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}

	return id, nil
}

// validateEntityID accepts decimal strings that parse to a positive int64.
func validateEntityID(fl validator.FieldLevel) bool {
	id, err := strconv.ParseInt(fl.Field().String(), 10, 64)

	return err == nil && id > 0
}
