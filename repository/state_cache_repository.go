package repository

import "context"

// StateCacheRepository, replicator'ın yerel key-value deposu.
// Get, olmayan key için pkg.ErrNotFound döner.
type StateCacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
