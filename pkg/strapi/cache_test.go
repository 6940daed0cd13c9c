package strapi_test

import (
	"context"
	"testing"
	"time"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	t.Parallel()

	cache := strapi.NewMemoryCache(10)
	ctx := context.Background()

	entry := &strapi.CacheEntry{
		Data:      []byte("test data"),
		Tags:      []string{"products"},
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}

	err := cache.Set(ctx, "key1", entry)
	require.NoError(t, err)

	retrieved, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, entry.Data, retrieved.Data)
	assert.Equal(t, entry.Tags, retrieved.Tags)

	// Stored entries are copies.
	retrieved.Data[0] = 'X'
	again, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("test data"), again.Data)
}

func TestMemoryCache_GetNonExistent(t *testing.T) {
	t.Parallel()

	cache := strapi.NewMemoryCache(10)

	_, err := cache.Get(context.Background(), "nonexistent")
	require.ErrorIs(t, err, strapi.ErrCacheMiss)
	assert.Contains(t, err.Error(), "key not found")
}

func TestMemoryCache_GetExpired(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cache := strapi.NewMemoryCache(10, strapi.WithCacheClock(clock.Now))
	ctx := context.Background()

	entry := &strapi.CacheEntry{
		Data:      []byte("test data"),
		ExpiresAt: clock.Now().Add(time.Minute),
	}

	require.NoError(t, cache.Set(ctx, "key1", entry))

	clock.Advance(time.Minute)

	_, err := cache.Get(ctx, "key1")
	require.ErrorIs(t, err, strapi.ErrEntryExpired)
	assert.Contains(t, err.Error(), "entry expired")
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryCache_NoExpiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cache := strapi.NewMemoryCache(10, strapi.WithCacheClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "forever", &strapi.CacheEntry{Data: []byte("x")}))

	clock.Advance(365 * 24 * time.Hour)

	assert.True(t, cache.Has(ctx, "forever"))
}

func TestMemoryCache_Delete(t *testing.T) {
	t.Parallel()

	cache := strapi.NewMemoryCache(10)
	ctx := context.Background()

	entry := &strapi.CacheEntry{
		Data:      []byte("test data"),
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}

	require.NoError(t, cache.Set(ctx, "key1", entry))
	assert.True(t, cache.Has(ctx, "key1"))

	require.NoError(t, cache.Delete(ctx, "key1"))
	assert.False(t, cache.Has(ctx, "key1"))
}

func TestMemoryCache_Clear(t *testing.T) {
	t.Parallel()

	cache := strapi.NewMemoryCache(10)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		_ = cache.Set(ctx, key, &strapi.CacheEntry{Data: []byte(key)})
	}

	assert.Equal(t, 3, cache.Len())

	require.NoError(t, cache.Clear(ctx))

	assert.Equal(t, 0, cache.Len())
	assert.False(t, cache.Has(ctx, "a"))
}

func TestMemoryCache_MaxSize(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cache := strapi.NewMemoryCache(2, strapi.WithCacheClock(clock.Now))
	ctx := context.Background()

	_ = cache.Set(ctx, "soon", &strapi.CacheEntry{Data: []byte("1"), ExpiresAt: clock.Now().Add(time.Minute)})
	_ = cache.Set(ctx, "tagged", &strapi.CacheEntry{Data: []byte("2"), Tags: []string{"t"}})
	_ = cache.Set(ctx, "later", &strapi.CacheEntry{Data: []byte("3"), ExpiresAt: clock.Now().Add(time.Hour)})

	assert.Equal(t, 2, cache.Len())
	assert.False(t, cache.Has(ctx, "soon"), "entry expiring first is evicted")
	assert.True(t, cache.Has(ctx, "tagged"))
	assert.True(t, cache.Has(ctx, "later"))

	// Overwriting an existing key does not evict.
	_ = cache.Set(ctx, "later", &strapi.CacheEntry{Data: []byte("4")})
	assert.True(t, cache.Has(ctx, "tagged"))
}

func TestMemoryCache_Cleanup(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cache := strapi.NewMemoryCache(10, strapi.WithCacheClock(clock.Now))
	ctx := context.Background()

	_ = cache.Set(ctx, "expired", &strapi.CacheEntry{Data: []byte("expired"), ExpiresAt: clock.Now().Add(time.Second)})
	_ = cache.Set(ctx, "valid", &strapi.CacheEntry{Data: []byte("valid"), ExpiresAt: clock.Now().Add(time.Hour)})

	clock.Advance(time.Minute)
	cache.Cleanup()

	assert.Equal(t, 1, cache.Len())
	assert.True(t, cache.Has(ctx, "valid"))
	assert.False(t, cache.Has(ctx, "expired"))
}

func TestMemoryCache_RunCleanupStopsWithContext(t *testing.T) {
	t.Parallel()

	cache := strapi.NewMemoryCache(10, strapi.WithCleanupInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})

	go func() {
		cache.RunCleanup(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not return after cancel")
	}
}

func TestMemoryCache_InvalidateTags(t *testing.T) {
	t.Parallel()

	cache := strapi.NewMemoryCache(10)
	ctx := context.Background()

	_ = cache.Set(ctx, "p1", &strapi.CacheEntry{Data: []byte("1"), Tags: []string{"products"}})
	_ = cache.Set(ctx, "p2", &strapi.CacheEntry{Data: []byte("2"), Tags: []string{"products", "home"}})
	_ = cache.Set(ctx, "c1", &strapi.CacheEntry{Data: []byte("3"), Tags: []string{"categories"}})
	_ = cache.Set(ctx, "untagged", &strapi.CacheEntry{Data: []byte("4")})

	removed, err := cache.InvalidateTags(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.False(t, cache.Has(ctx, "p1"))
	assert.False(t, cache.Has(ctx, "p2"))
	assert.True(t, cache.Has(ctx, "c1"))
	assert.True(t, cache.Has(ctx, "untagged"))

	removed, err = cache.InvalidateTags(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestCacheEntry_Expired(t *testing.T) {
	t.Parallel()

	now := time.Now()

	tests := []struct {
		name     string
		entry    strapi.CacheEntry
		expected bool
	}{
		{name: "no expiry", entry: strapi.CacheEntry{}, expected: false},
		{name: "future", entry: strapi.CacheEntry{ExpiresAt: now.Add(time.Second)}, expected: false},
		{name: "exactly now", entry: strapi.CacheEntry{ExpiresAt: now}, expected: true},
		{name: "past", entry: strapi.CacheEntry{ExpiresAt: now.Add(-time.Second)}, expected: true},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.entry.Expired(now))
		})
	}
}
