package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL UNIQUE,
		count INTEGER NOT NULL DEFAULT 1,
		user_id TEXT REFERENCES users (id),
		user_name TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_updated_at ON entries (updated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_count_updated_at ON entries (count, updated_at)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entries (
		id BIGSERIAL PRIMARY KEY,
		text TEXT NOT NULL UNIQUE,
		count INTEGER NOT NULL DEFAULT 1,
		user_id TEXT REFERENCES users (id),
		user_name TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_updated_at ON entries (updated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_count_updated_at ON entries (count, updated_at)`,
}

// Migrate creates the users and entries tables. It is safe to run on every start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	var stmts []string
	switch db.DriverName() {
	case DriverPostgres, "postgres":
		stmts = postgresSchema
	default:
		stmts = sqliteSchema
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
