package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/romako-counter/internal/database"
	"github.com/stretchr/testify/require"
)

// setupSQLite opens a private in-memory store with the schema applied.
func setupSQLite(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Driver: database.DriverSQLite,
		DSN:    database.SQLiteMemoryDSN(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// steppingClock returns a clock that advances by one second per call.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func strPtr(s string) *string { return &s }
