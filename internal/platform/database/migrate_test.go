package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/authority/internal/platform/database"
	"github.com/valinor-ai/authority/internal/platform/database/dbtest"
)

func TestRunMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	connStr, cleanup := setupPostgres(t)
	defer cleanup()

	root := dbtest.ProjectRoot(t)
	migrationsPath := "file://" + filepath.Join(root, "migrations")
	err := database.RunMigrations(connStr, migrationsPath)
	require.NoError(t, err)

	// Verify tables exist by connecting and querying
	pool, err := database.Connect(context.Background(), connStr, 5)
	require.NoError(t, err)
	defer pool.Close()

	for _, table := range []string{"authority_rules", "authority_aliases", "authority_roles", "authority_resource_types", "audit_events"} {
		var tableName string
		err = pool.QueryRow(context.Background(),
			"SELECT table_name FROM information_schema.tables WHERE table_name = $1", table).
			Scan(&tableName)
		require.NoError(t, err)
		assert.Equal(t, table, tableName)
	}

	// Re-running is a no-op.
	require.NoError(t, database.RunMigrations(connStr, migrationsPath))
}
