package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestCloneKeepsSentinelIntact(t *testing.T) {
	clone := Clone(ErrValidation, "Rating must be between 1 and 5")
	assert.Equal(t, "Rating must be between 1 and 5", clone.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
	assert.True(t, Is(fmt.Errorf("wrapped: %w", clone), ErrValidation))
	assert.False(t, Is(clone, ErrNotFound))
}

func TestInternalAndInvalidHelpers(t *testing.T) {
	internal := Internal(sql.ErrNoRows, "failed to load course")
	assert.Equal(t, ErrInternal.Code, internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.Status)
	assert.Equal(t, "failed to load course: sql: no rows in result set", internal.Error())

	invalid := Invalid(nil, "invalid course payload")
	assert.Equal(t, ErrValidation.Code, invalid.Code)
	assert.Equal(t, http.StatusBadRequest, invalid.Status)
	assert.Equal(t, "invalid course payload", invalid.Error())
}
