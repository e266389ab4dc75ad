package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("User", "abc-123")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "User not found: abc-123", err.Error())

	var nf *NotFoundError
	require.ErrorAs(t, fmt.Errorf("handling request: %w", err), &nf)
	assert.Equal(t, "abc-123", nf.ID)
}

func TestUniquenessError(t *testing.T) {
	t.Run("with detail", func(t *testing.T) {
		err := NewUniquenessError("User", "user_name", "userName has already been taken")

		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, "userName has already been taken", err.Error())
	})

	t.Run("without detail", func(t *testing.T) {
		err := NewUniquenessError("User", "user_name", "")

		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, "User violates a uniqueness constraint on user_name", err.Error())
	})
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("userName", TagRequired, "userName is required")

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "userName is required")
}

func TestInvalidFilterError(t *testing.T) {
	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("unexpected token")
		err := NewInvalidFilterError("userName eq", cause)

		assert.ErrorIs(t, err, ErrInvalidFilter)
		assert.Contains(t, err.Error(), "unexpected token")
	})

	t.Run("without cause", func(t *testing.T) {
		err := NewInvalidFilterError("attribute title is not filterable", nil)

		assert.ErrorIs(t, err, ErrInvalidFilter)
		assert.Equal(t, "invalid filter: attribute title is not filterable", err.Error())
	})
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{ErrNotFound, ErrConflict, ErrInvalidInput, ErrInvalidFilter, ErrNotSaved, ErrInternalError}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.NotErrorIs(t, a, b)
		}
	}
}
