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

const userColumns = `id, name, created_at`

type UserReadRepository struct {
	db *sqlx.DB
}

func NewUserReadRepository(db *sqlx.DB) *UserReadRepository {
	return &UserReadRepository{db: db}
}

// GetByID returns the user or nil when no row matches.
func (r *UserReadRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := getUserByID(ctx, r.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func getUserByID(ctx context.Context, ex sqlx.ExtContext, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	var user models.User
	err := sqlx.GetContext(ctx, ex, &user, ex.Rebind(query), id)

	logger.Log.Infow(
		"query",
		"sql", query,
		"args", []any{id},
		"result", user,
		"error", err,
	)

	if err != nil {
		return nil, err
	}
	return &user, nil
}

type UserWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
	now      func() time.Time
}

func NewUserWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *UserWriteRepository {
	return &UserWriteRepository{db: db, txGetter: txGetter, now: now}
}

// Save upserts the user by id. An existing row is fully replaced: both name and
// created_at take the new values.
func (r *UserWriteRepository) Save(ctx context.Context, id, name string) (*models.User, error) {
	query := `
		INSERT INTO users (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET name = excluded.name,
		    created_at = excluded.created_at
	`
	args := []any{id, name, r.now()}

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
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	user, err := getUserByID(ctx, ex, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRetrieval
		}
		return nil, fmt.Errorf("read back user: %w", err)
	}
	return user, nil
}
