package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGet_NotFound(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemory(time.Minute, 100)
	require.NoError(t, err)

	value, found, err := cache.Get(ctx, "nonexistent")

	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)
}

func TestMemorySetAndGet_Success(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemory(time.Minute, 100)
	require.NoError(t, err)

	err = cache.Set(ctx, "test-key", "testdata")
	require.NoError(t, err)

	value, found, err := cache.Get(ctx, "test-key")

	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "testdata", value)
}

func TestMemoryInvalidate_RemovesEntry(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemory(time.Minute, 100)
	require.NoError(t, err)

	err = cache.Set(ctx, "test-key", "testdata")
	require.NoError(t, err)

	err = cache.Invalidate(ctx, "test-key")
	require.NoError(t, err)

	_, found, err := cache.Get(ctx, "test-key")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	// Use very short TTL for testing
	cache, err := NewMemory(100*time.Millisecond, 100)
	require.NoError(t, err)

	err = cache.Set(ctx, "test-key", "testdata")
	require.NoError(t, err)

	// Verify entry is present immediately
	_, found, err := cache.Get(ctx, "test-key")
	assert.NoError(t, err)
	assert.True(t, found)

	// Wait for TTL to expire
	time.Sleep(150 * time.Millisecond)

	// Verify entry is no longer present
	_, found, err = cache.Get(ctx, "test-key")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCapacityEviction(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemory(time.Minute, 10)
	require.NoError(t, err)

	// Write well past capacity; the oldest entries must be evicted.
	for i := 0; i < 100; i++ {
		err = cache.Set(ctx, fmt.Sprintf("key-%d", i), i)
		require.NoError(t, err)
	}

	found := 0
	for i := 0; i < 100; i++ {
		_, ok, err := cache.Get(ctx, fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		if ok {
			found++
		}
	}

	assert.LessOrEqual(t, found, 10)
}

func TestMemoryInvalidateAll(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemory(time.Minute, 100)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, cache.Set(ctx, fmt.Sprintf("key-%d", i), i))
	}

	cache.InvalidateAll()

	for i := 0; i < 5; i++ {
		_, found, err := cache.Get(ctx, fmt.Sprintf("key-%d", i))
		assert.NoError(t, err)
		assert.False(t, found)
	}
}
