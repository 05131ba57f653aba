package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akinalp/nexus/database"
	"github.com/akinalp/nexus/pkg"
)

type sqliteStateCacheRepo struct {
	db database.TxQuerier
}

// NewSQLiteStateCacheRepo, constructor.
func NewSQLiteStateCacheRepo(db database.TxQuerier) StateCacheRepository {
	return &sqliteStateCacheRepo{db: db}
}

func (r *sqliteStateCacheRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM state_cache WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: state cache key %s", pkg.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state cache: %w", err)
	}
	return value, nil
}

func (r *sqliteStateCacheRepo) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO state_cache (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write state cache: %w", err)
	}
	return nil
}

func (r *sqliteStateCacheRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM state_cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete state cache key: %w", err)
	}
	return nil
}
