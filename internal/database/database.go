package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/romako-counter/internal/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Config describes how to reach the relational store.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// SQLiteFileDSN returns a DSN for an on-disk SQLite database with foreign keys enforced.
func SQLiteFileDSN(path string) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", "5000")
	q.Set("_journal_mode", "WAL")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// SQLiteMemoryDSN returns a DSN for an ephemeral in-memory SQLite database.
func SQLiteMemoryDSN() string {
	return "file::memory:?_foreign_keys=on"
}

// PostgresDSN builds a pgx connection string.
func PostgresDSN(host string, port int, user, password, db string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		url.QueryEscape(user), url.QueryEscape(password), host, port, db)
}

// Open connects to the store and creates the schema if it does not exist yet.
// The returned handle is ready for use by repositories.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == DriverSQLite && isMemoryDSN(cfg.DSN) {
		// Every new connection to :memory: is a fresh database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Log.Infow("database ready", "driver", cfg.Driver)
	return db, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:")
}
