package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/romako-counter/internal/logger"
	"github.com/sbilibin2017/romako-counter/internal/models"
)

// ErrRetrieval is returned when a row written moments ago cannot be read back.
var ErrRetrieval = errors.New("failed to retrieve written row")

const entryColumns = `id, text, count, user_id, user_name, created_at, updated_at`

// now returns the storage clock, truncated to the precision every driver keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// EntryWriteRepository handles entry write operations
type EntryWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
	now      func() time.Time
}

func NewEntryWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *EntryWriteRepository {
	return &EntryWriteRepository{db: db, txGetter: txGetter, now: now}
}

// Save performs an UPSERT keyed by text: inserts the entry with count 1 or increments
// the existing one, replacing the poster identity, then reads the row back.
func (r *EntryWriteRepository) Save(ctx context.Context, text string, userID, userName *string) (*models.Entry, error) {
	query := `
		INSERT INTO entries (text, count, user_id, user_name, created_at, updated_at)
		VALUES (?, 1, ?, ?, ?, ?)
		ON CONFLICT (text) DO UPDATE
		SET count = entries.count + 1,
		    user_id = excluded.user_id,
		    user_name = excluded.user_name,
		    updated_at = excluded.updated_at
	`
	ts := r.now()
	args := []any{text, userID, userName, ts, ts}

	ex := executor(ctx, r.db, r.txGetter)
	res, err := ex.ExecContext(ctx, ex.Rebind(query), args...)
	var rowsAffected int64
	if res != nil {
		rowsAffected, _ = res.RowsAffected()
	}

	// Log with query in single line
	logger.Log.Infow(
		"query",
		"sql", strings.Join(strings.Fields(query), " "),
		"args", args,
		"result", rowsAffected,
		"error", err,
	)

	if err != nil {
		return nil, fmt.Errorf("upsert entry: %w", err)
	}

	entry, err := getEntryByText(ctx, ex, text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRetrieval
		}
		return nil, fmt.Errorf("read back entry: %w", err)
	}
	return entry, nil
}

func getEntryByText(ctx context.Context, ex sqlx.ExtContext, text string) (*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE text = ?`

	var entry models.Entry
	err := sqlx.GetContext(ctx, ex, &entry, ex.Rebind(query), text)

	logger.Log.Infow(
		"query",
		"sql", query,
		"args", []any{text},
		"result", entry,
		"error", err,
	)

	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// EntryReadRepository handles entry read operations
type EntryReadRepository struct {
	db *sqlx.DB
}

func NewEntryReadRepository(db *sqlx.DB) *EntryReadRepository {
	return &EntryReadRepository{db: db}
}

// ListByUpdated returns every entry, most recently touched first.
func (r *EntryReadRepository) ListByUpdated(ctx context.Context) ([]models.Entry, error) {
	const query = `
		SELECT ` + entryColumns + `
		FROM entries
		ORDER BY updated_at DESC, id DESC
	`
	return r.list(ctx, query)
}

// ListByCount returns every entry ordered by count, ties broken by recency.
func (r *EntryReadRepository) ListByCount(ctx context.Context) ([]models.Entry, error) {
	const query = `
		SELECT ` + entryColumns + `
		FROM entries
		ORDER BY count DESC, updated_at DESC, id DESC
	`
	return r.list(ctx, query)
}

func (r *EntryReadRepository) list(ctx context.Context, query string) ([]models.Entry, error) {
	entries := make([]models.Entry, 0)
	err := r.db.SelectContext(ctx, &entries, query)

	logger.Log.Infow(
		"query",
		"sql", strings.Join(strings.Fields(query), " "),
		"result", len(entries),
		"error", err,
	)

	if err != nil {
		return nil, err
	}
	return entries, nil
}
