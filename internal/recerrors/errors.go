// Package recerrors provides sentinel and custom error types for the recommender.
package recerrors

// ErrNotFound represents a "not found" error.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
// Recommendation paths turn it into an empty result instead of surfacing it.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for client input that fails validation.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrConflict is the sentinel for operations rejected because another one is running (e.g. index sync).
var ErrConflict = &ConflictError{}

// ConflictError is a sentinel error for conflicting operations.
type ConflictError struct {
	Message string
}

// NewConflictError creates a ConflictError with a custom message.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "conflict"
}

// Is implements the error interface for error comparison.
func (e *ConflictError) Is(target error) bool {
	_, ok := target.(*ConflictError)

	return ok
}

// Upstream dependencies named in UpstreamUnavailableError.
const (
	DependencyRelationalStore   = "relational_store"
	DependencyVectorIndex       = "vector_index"
	DependencyEmbeddingProvider = "embedding_provider"
)

// ErrUpstreamUnavailable is the sentinel for failures of an external collaborator.
var ErrUpstreamUnavailable = &UpstreamUnavailableError{}

// UpstreamUnavailableError wraps a failure of the relational store, vector index or embedding provider.
// It is fatal for the current request and never retried by the core.
type UpstreamUnavailableError struct {
	Dependency string
	Err        error
}

// NewUpstreamUnavailableError wraps err as a failure of dependency.
func NewUpstreamUnavailableError(dependency string, err error) *UpstreamUnavailableError {
	return &UpstreamUnavailableError{Dependency: dependency, Err: err}
}

// Error implements the error interface.
func (e *UpstreamUnavailableError) Error() string {
	name := e.Dependency
	if name == "" {
		name = "upstream"
	}

	if e.Err == nil {
		return name + " unavailable"
	}

	return name + " unavailable: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *UpstreamUnavailableError) Unwrap() error {
	return e.Err
}

// Is implements the error interface for error comparison.
func (e *UpstreamUnavailableError) Is(target error) bool {
	_, ok := target.(*UpstreamUnavailableError)

	return ok
}
