package strapi

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const keySeparator = "\x1f"

// Producer fetches a response body.
type Producer func(ctx context.Context) ([]byte, error)

// CachePolicy controls how long a memoized result lives. Entries with tags
// never expire on time; they live until one of their tags is invalidated.
// Without tags, a zero Revalidate keeps the entry until it is evicted.
type CachePolicy struct {
	Revalidate time.Duration
	Tags       []string
}

// ExpiresAt returns the expiry for an entry created at now, zero for none.
func (p CachePolicy) ExpiresAt(now time.Time) time.Time {
	if len(p.Tags) > 0 || p.Revalidate <= 0 {
		return time.Time{}
	}

	return now.Add(p.Revalidate)
}

// CacheKey joins key parts into one cache key.
func CacheKey(parts ...string) string {
	return strings.Join(parts, keySeparator)
}

// CacheStats counts memoizer outcomes.
type CacheStats struct {
	Hits   int64 `json:"hits"   yaml:"hits"`
	Misses int64 `json:"misses" yaml:"misses"`
	Sets   int64 `json:"sets"   yaml:"sets"`
	Errors int64 `json:"errors" yaml:"errors"`
}

// GetHitRate returns the cache hit rate.
func (s *CacheStats) GetHitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// Memoizer caches producer results in a Cache. Concurrent calls for the
// same key share one producer call. Producer errors are never cached.
type Memoizer struct {
	cache   Cache
	logger  Logger
	metrics *Metrics
	now     func() time.Time
	group   singleflight.Group

	mu    sync.Mutex
	stats CacheStats
}

// MemoizerOption configures a Memoizer.
type MemoizerOption func(*Memoizer)

// WithMemoizerClock replaces time.Now, mostly for tests.
func WithMemoizerClock(now func() time.Time) MemoizerOption {
	return func(m *Memoizer) {
		m.now = now
	}
}

// WithMemoizerLogger sets the logger.
func WithMemoizerLogger(logger Logger) MemoizerOption {
	return func(m *Memoizer) {
		m.logger = logger
	}
}

// WithMemoizerMetrics records hits and misses.
func WithMemoizerMetrics(metrics *Metrics) MemoizerOption {
	return func(m *Memoizer) {
		m.metrics = metrics
	}
}

// NewMemoizer creates a memoizer over cache. A nil cache disables caching.
func NewMemoizer(cache Cache, opts ...MemoizerOption) *Memoizer {
	if cache == nil {
		cache = NewNoOpCache()
	}

	m := &Memoizer{
		cache:  cache,
		logger: NoopLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Cache returns the underlying cache.
func (m *Memoizer) Cache() Cache {
	return m.cache
}

// Memoize returns a producer with the same behavior as producer whose
// results are cached under keyParts according to policy. Cache failures
// are returned wrapped in ErrCacheFailure.
func (m *Memoizer) Memoize(producer Producer, keyParts []string, policy CachePolicy) Producer {
	key := CacheKey(keyParts...)
	tags := slices.Clone(policy.Tags)

	return func(ctx context.Context) ([]byte, error) {
		data, hit, err := m.lookup(ctx, key)
		if err != nil {
			return nil, err
		}

		if hit {
			return data, nil
		}

		result, err, shared := m.group.Do(key, func() (interface{}, error) {
			return m.produce(ctx, key, producer, CachePolicy{Revalidate: policy.Revalidate, Tags: tags})
		})
		if err != nil {
			return nil, err //nolint:wrapcheck // already wrapped by produce or the producer
		}

		if shared {
			m.logger.Debug("Cache fill shared", map[string]interface{}{"key": printableKey(key)})
		}

		return slices.Clone(result.([]byte)), nil //nolint:forcetypeassert // produce only returns []byte
	}
}

// Invalidate drops every entry carrying one of tags.
func (m *Memoizer) Invalidate(ctx context.Context, tags ...string) (int, error) {
	invalidator, ok := m.cache.(TagInvalidator)
	if !ok {
		return 0, ErrTagsUnsupported
	}

	removed, err := invalidator.InvalidateTags(ctx, tags...)
	if err != nil {
		m.count(func(s *CacheStats) { s.Errors++ })

		return removed, fmt.Errorf("%w: %w", ErrCacheFailure, err)
	}

	m.logger.Debug("Cache tags invalidated", map[string]interface{}{
		"tags":    tags,
		"removed": removed,
	})

	return removed, nil
}

// GetStats returns a snapshot of the counters.
func (m *Memoizer) GetStats() CacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stats
}

func (m *Memoizer) lookup(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := m.cache.Get(ctx, key)

	switch {
	case err == nil:
		m.count(func(s *CacheStats) { s.Hits++ })
		m.metrics.cacheHit()

		return entry.Data, true, nil

	case isCacheMiss(err):
		m.count(func(s *CacheStats) { s.Misses++ })
		m.metrics.cacheMiss()

		return nil, false, nil

	default:
		m.count(func(s *CacheStats) { s.Errors++ })
		m.logger.Warn("Cache read failed", map[string]interface{}{
			"key":   printableKey(key),
			"error": err.Error(),
		})

		return nil, false, fmt.Errorf("%w: %w", ErrCacheFailure, err)
	}
}

func (m *Memoizer) produce(ctx context.Context, key string, producer Producer, policy CachePolicy) ([]byte, error) {
	data, err := producer(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now()
	entry := &CacheEntry{
		Data:      data,
		Tags:      policy.Tags,
		CreatedAt: now,
		ExpiresAt: policy.ExpiresAt(now),
	}

	if err := m.cache.Set(ctx, key, entry); err != nil {
		m.count(func(s *CacheStats) { s.Errors++ })

		return nil, fmt.Errorf("%w: %w", ErrCacheFailure, err)
	}

	m.count(func(s *CacheStats) { s.Sets++ })

	return data, nil
}

func (m *Memoizer) count(update func(*CacheStats)) {
	m.mu.Lock()
	update(&m.stats)
	m.mu.Unlock()
}

func isCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss) ||
		errors.Is(err, ErrEntryExpired) ||
		errors.Is(err, ErrCacheDisabled) ||
		errors.Is(err, ErrKeyNotFoundInAnyCache)
}

func printableKey(key string) string {
	return strings.ReplaceAll(key, keySeparator, " ")
}
