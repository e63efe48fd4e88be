// Package cache provides the key-value cache service behind the geo-grid
// issue cache. The handle is passed explicitly into components that need
// it; there is no process-global instance.
package cache

import (
	"context"
	"time"
)

// Service is the contract the grid cache depends on. Implementations
// must make writes idempotent: re-deriving the same cell or summary twice
// is harmless, so lost-update races between concurrent fillers are benign.
type Service interface {
	// Get retrieves a cached value by key and unmarshals into target.
	// Returns false on a miss; a miss is not an error.
	Get(ctx context.Context, key string, target any) (bool, error)

	// SetWithTTL stores a value that expires after ttl.
	SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// DeletePattern removes all keys matching a glob-style pattern and
	// returns how many were removed.
	DeletePattern(ctx context.Context, pattern string) (int64, error)

	// HealthCheck verifies backend connectivity.
	HealthCheck(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
