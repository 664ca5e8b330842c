package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedError(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Clone(ErrNotFound, "appointment not found"))

	appErr := FromError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, "appointment not found", appErr.Message)
}

func TestFromErrorNormalisesUnknown(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Nil(t, FromError(nil))
}

func TestIsMatchesByCode(t *testing.T) {
	err := Clone(ErrInvalidTransition, "cannot cancel a completed appointment")
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.False(t, errors.Is(err, ErrValidation))

	wrapped := Validation(errors.New("bad"), "invalid payload")
	assert.True(t, errors.Is(wrapped, ErrValidation))
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrForbidden, "only students can book appointments")
	assert.Equal(t, "forbidden", ErrForbidden.Message)
	assert.Equal(t, "only students can book appointments", clone.Message)
}
