package database

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMigratorValidation(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("nil database", func(t *testing.T) {
		_, err := NewMigrator(nil, "migrations", logger)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "database is required")
	})

	t.Run("uninitialized pool", func(t *testing.T) {
		_, err := NewMigrator(&DB{}, "migrations", logger)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "pool not initialized")
	})
}
