package cache

import (
	"context"
	"time"
)

// Cache defines the key-value operations used by read-through caches.
type Cache interface {
	// Get returns "" without error on a miss.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair; a zero ttl never expires.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Del(ctx context.Context, keys ...string) error

	Ping(ctx context.Context) error

	Close() error
}
