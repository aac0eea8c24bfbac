package cache

import (
	"context"
	"time"
)

// Backend is a byte-oriented key-value store with per-entry TTL. Implementations
// report misses as (nil, false, nil) and reserve errors for backend failures.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}
