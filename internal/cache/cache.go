package cache

import (
	"context"
)

// Store defines the interface for a single named cache.
type Store interface {
	// Get retrieves a value from the cache.
	// Returns the value, whether it was found, and any error.
	Get(ctx context.Context, key string) (any, bool, error)

	// Set stores a value in the cache, resetting the entry's TTL.
	Set(ctx context.Context, key string, value any) error

	// Invalidate removes a single entry from the cache.
	Invalidate(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// Stats is a point-in-time snapshot of a single cache's counters.
type Stats struct {
	Size      int    `json:"size"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}
