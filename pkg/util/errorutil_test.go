package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCode(t *testing.T) {
	err := NewInvalidTransition("closed", "in_progress")
	assert.True(t, IsCode(err, "INVALID_TRANSITION"))
	assert.False(t, IsCode(err, "NOT_FOUND"))
	assert.False(t, IsCode(nil, "INVALID_TRANSITION"))
	assert.False(t, IsCode(errors.New("plain"), "INVALID_TRANSITION"))
}

func TestIsCodeSeesWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("sweep: %w", NewNoEligibleUnit("inc-1"))
	assert.True(t, IsCode(wrapped, "NO_ELIGIBLE_UNIT"))
}

func TestToDomainErrorPassesThrough(t *testing.T) {
	original := NewConflict("busy", map[string]any{"id": "inc-1"})
	converted := ToDomainError(original)
	require.NotNil(t, converted)
	assert.Equal(t, "CONFLICT", converted.Code)
	assert.Equal(t, http.StatusConflict, converted.HTTPStatus)
	assert.Equal(t, "inc-1", converted.Details["id"])
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	cause := errors.New("connection reset")
	converted := ToDomainError(cause)
	require.NotNil(t, converted)
	assert.Equal(t, "INTERNAL_ERROR", converted.Code)
	assert.Equal(t, http.StatusInternalServerError, converted.HTTPStatus)
	assert.ErrorIs(t, converted, cause)
}

func TestMapErrorNil(t *testing.T) {
	assert.NoError(t, MapError(nil))
}

func TestInvalidTransitionDetails(t *testing.T) {
	var domainErr *DomainError
	require.ErrorAs(t, NewInvalidTransition("closed", "triaged"), &domainErr)
	assert.Equal(t, "closed", domainErr.Details["from"])
	assert.Equal(t, "triaged", domainErr.Details["to"])
	assert.Equal(t, http.StatusUnprocessableEntity, domainErr.HTTPStatus)
}
