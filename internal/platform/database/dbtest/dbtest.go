// Package dbtest opens throwaway SQLite stores for tests.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vcontests/vscubing-back/internal/platform/config"
	"github.com/vcontests/vscubing-back/internal/platform/database"
)

// Open returns a migrated SQLite database in t.TempDir(), closed on cleanup.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "vscubing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, config.DriverSQLite))
	return db
}

// InsertUser adds a bare participant row so foreign keys resolve.
func InsertUser(t testing.TB, db *sql.DB, id string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO users (id, username, email, hashed_password, role) VALUES ($1, $2, $3, $4, $5)`,
		id, "user-"+id, id+"@example.com", "x", "user")
	require.NoError(t, err)
}
