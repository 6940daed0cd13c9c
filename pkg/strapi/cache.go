package strapi

import (
	"context"
	"slices"
	"sync"
	"time"
)

// CacheEntry is one cached response body.
type CacheEntry struct {
	Data []byte `json:"data"`
	// Key is the full cache key; backends that hash keys use it to detect
	// collisions.
	Key       string    `json:"key,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	// ExpiresAt is zero for entries that only expire through tags.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the entry is past its expiry at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// HasTag reports whether the entry carries any of tags.
func (e *CacheEntry) HasTag(tags ...string) bool {
	for _, tag := range tags {
		if slices.Contains(e.Tags, tag) {
			return true
		}
	}

	return false
}

func (e *CacheEntry) clone() *CacheEntry {
	out := *e
	out.Data = slices.Clone(e.Data)
	out.Tags = slices.Clone(e.Tags)

	return &out
}

// Cache is the storage behind the memoizer.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
}

// TagInvalidator is implemented by caches that can drop entries by tag.
type TagInvalidator interface {
	InvalidateTags(ctx context.Context, tags ...string) (int, error)
}

// MemoryCache is a bounded in-process cache. When full, it evicts the entry
// that expires soonest; entries without expiry go last.
type MemoryCache struct {
	mu              sync.RWMutex
	entries         map[string]*CacheEntry
	maxSize         int
	cleanupInterval time.Duration
	now             func() time.Time
}

// MemoryCacheOption configures a MemoryCache.
type MemoryCacheOption func(*MemoryCache)

// WithCacheClock replaces time.Now, mostly for tests.
func WithCacheClock(now func() time.Time) MemoryCacheOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// WithCleanupInterval sets the period used by RunCleanup.
func WithCleanupInterval(interval time.Duration) MemoryCacheOption {
	return func(c *MemoryCache) {
		c.cleanupInterval = interval
	}
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
// A non-positive maxSize means unbounded.
func NewMemoryCache(maxSize int, opts ...MemoryCacheOption) *MemoryCache {
	cache := &MemoryCache{
		entries:         make(map[string]*CacheEntry),
		maxSize:         maxSize,
		cleanupInterval: time.Minute,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

// Get returns a copy of the entry. Expired entries are removed and reported
// as ErrEntryExpired.
func (c *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}

	if entry.Expired(c.now()) {
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && current == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()

		return nil, ErrEntryExpired
	}

	return entry.clone(), nil
}

// Set stores a copy of entry.
func (c *MemoryCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[key] = entry.clone()

	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	return nil
}

// Clear removes every entry.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.mu.Unlock()

	return nil
}

// Has reports whether key holds an entry that has not expired.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]

	return ok && !entry.Expired(c.now())
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// InvalidateTags removes every entry carrying one of tags.
func (c *MemoryCache) InvalidateTags(ctx context.Context, tags ...string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0

	for key, entry := range c.entries {
		if entry.HasTag(tags...) {
			delete(c.entries, key)

			removed++
		}
	}

	return removed, nil
}

// Cleanup removes expired entries.
func (c *MemoryCache) Cleanup() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
		}
	}
}

// RunCleanup calls Cleanup every cleanup interval until ctx is done.
func (c *MemoryCache) RunCleanup(ctx context.Context) {
	if c.cleanupInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

func (c *MemoryCache) evictLocked() {
	var (
		victim string
		oldest *CacheEntry
	)

	for key, entry := range c.entries {
		if oldest == nil || expiresBefore(entry, oldest) {
			victim, oldest = key, entry
		}
	}

	if oldest != nil {
		delete(c.entries, victim)
	}
}

// expiresBefore orders entries for eviction: sooner expiry first, entries
// without expiry last, ties broken by creation time.
func expiresBefore(a, b *CacheEntry) bool {
	switch {
	case a.ExpiresAt.IsZero() && b.ExpiresAt.IsZero():
		return a.CreatedAt.Before(b.CreatedAt)
	case a.ExpiresAt.IsZero():
		return false
	case b.ExpiresAt.IsZero():
		return true
	case a.ExpiresAt.Equal(b.ExpiresAt):
		return a.CreatedAt.Before(b.CreatedAt)
	default:
		return a.ExpiresAt.Before(b.ExpiresAt)
	}
}
