package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotMigrated indicates the list_preferences table does not exist yet.
var ErrNotMigrated = errors.New("prefs: list_preferences table missing")

const undefinedTable = "42P01"

// PostgresStore persists preferences in the list_preferences table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs the store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, key string) (int, bool, error) {
	if s == nil || s.pool == nil {
		return 0, false, errors.New("prefs: postgres store not initialised")
	}
	var value int
	err := s.pool.QueryRow(ctx, `SELECT value FROM list_preferences WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapPgError("get", key, err)
	}
	if value <= 0 {
		return 0, false, nil
	}
	return value, true, nil
}

// Set implements Store.
func (s *PostgresStore) Set(ctx context.Context, key string, value int) error {
	if s == nil || s.pool == nil {
		return errors.New("prefs: postgres store not initialised")
	}
	if value <= 0 {
		return ErrInvalidValue
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO list_preferences (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, key, value)
	if err != nil {
		return wrapPgError("set", key, err)
	}
	return nil
}

func wrapPgError(op, key string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return ErrNotMigrated
	}
	return fmt.Errorf("prefs: postgres %s %s: %w", op, key, err)
}
