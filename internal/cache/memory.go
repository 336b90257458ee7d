package cache

import (
	"context"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"
)

// Memory is an in-memory cache implementation using otter. Entries are
// bounded by maximum size (LRU-style eviction) and expire a fixed duration
// after their last write.
type Memory struct {
	cache   *otter.Cache[string, any]
	ttl     time.Duration
	counter *stats.Counter
}

// NewMemory creates a new in-memory cache with the specified TTL and max size.
func NewMemory(ttl time.Duration, maxSize int) (*Memory, error) {
	counter := stats.NewCounter()
	cache := otter.Must(&otter.Options[string, any]{
		MaximumSize:      maxSize,
		StatsRecorder:    counter,
		ExpiryCalculator: otter.ExpiryWriting[string, any](ttl),
	})

	return &Memory{
		cache:   cache,
		ttl:     ttl,
		counter: counter,
	}, nil
}

// Get retrieves a value from the cache.
// Returns the value, whether it was found, and any error.
func (m *Memory) Get(ctx context.Context, key string) (any, bool, error) {
	entry, ok := m.cache.GetEntry(key)
	if !ok {
		return nil, false, nil
	}

	return entry.Value, true, nil
}

// Set stores a value in the cache. Overwriting an existing key resets its
// TTL.
func (m *Memory) Set(ctx context.Context, key string, value any) error {
	m.cache.Set(key, value)
	return nil
}

// Invalidate removes a value from the cache.
func (m *Memory) Invalidate(ctx context.Context, key string) error {
	m.cache.Invalidate(key)
	return nil
}

// InvalidateAll discards every entry in the cache.
func (m *Memory) InvalidateAll() {
	m.cache.InvalidateAll()
}

// Stats returns a snapshot of the cache's size and hit/miss/eviction
// counters.
func (m *Memory) Stats() Stats {
	snapshot := m.counter.Snapshot()
	return Stats{
		Size:      m.cache.EstimatedSize(),
		Hits:      snapshot.Hits,
		Misses:    snapshot.Misses,
		Evictions: snapshot.Evictions,
	}
}

// Close releases cache resources.
func (m *Memory) Close() error {
	m.cache.InvalidateAll()
	return nil
}
