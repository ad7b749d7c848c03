package recerrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIs(t *testing.T) {
	wrapped := fmt.Errorf("get product: %w", NewNotFoundError("product", "product 7 not found"))
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.NotErrorIs(t, wrapped, ErrValidation)

	assert.ErrorIs(t, NewValidationError("limit", ""), ErrValidation)
	assert.ErrorIs(t, NewConflictError("sync already running"), ErrConflict)
}

func TestUpstreamUnavailableError(t *testing.T) {
	err := fmt.Errorf("search: %w", NewUpstreamUnavailableError(DependencyVectorIndex, context.DeadlineExceeded))

	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "search: vector_index unavailable: context deadline exceeded", err.Error())

	var upstream *UpstreamUnavailableError
	assert.True(t, errors.As(err, &upstream))
	assert.Equal(t, DependencyVectorIndex, upstream.Dependency)

	assert.Equal(t, "upstream unavailable", (&UpstreamUnavailableError{}).Error())
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "product not found", NewNotFoundError("product", "").Error())
	assert.Equal(t, "resource not found", (&NotFoundError{}).Error())
	assert.Equal(t, "validation failed for field: limit", NewValidationError("limit", "").Error())
	assert.Equal(t, "conflict", (&ConflictError{}).Error())
}
