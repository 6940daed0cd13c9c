package strapi

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// CacheType represents the type of cache backend.
type CacheType string

const (
	// CacheTypeMemory represents in-memory cache.
	CacheTypeMemory CacheType = "memory"

	// CacheTypeNATS represents NATS KV cache.
	CacheTypeNATS CacheType = "nats"

	// CacheTypeNone represents no caching.
	CacheTypeNone CacheType = "none"
)

// Defaults for the memory backend.
const (
	DefaultCacheSize       = 1000
	DefaultCleanupInterval = "1m"
)

// CacheConfig configures cache backend.
type CacheConfig struct {
	// Type is the cache backend type
	Type CacheType `mapstructure:"type" yaml:"type"`

	// Memory cache configuration
	Memory *MemoryCacheConfig `mapstructure:"memory" yaml:"memory,omitempty"`

	// NATS KV cache configuration
	NATS *NATSKVConfig `mapstructure:"nats" yaml:"nats,omitempty"`
}

// MemoryCacheConfig configures memory cache.
type MemoryCacheConfig struct {
	// MaxSize is the maximum number of items in the cache
	MaxSize int `mapstructure:"max_size" yaml:"max_size"`

	// CleanupInterval is the interval for cleaning up expired entries
	CleanupInterval string `mapstructure:"cleanup_interval" yaml:"cleanup_interval"` // Duration string like "1m", "5s"
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Type: CacheTypeMemory,
		Memory: &MemoryCacheConfig{
			MaxSize:         DefaultCacheSize,
			CleanupInterval: DefaultCleanupInterval,
		},
	}
}

// NewCacheFromConfig creates a cache backend from configuration.
func NewCacheFromConfig(config *CacheConfig) (Cache, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	switch config.Type {
	case CacheTypeMemory, "":
		cache, err := NewMemoryCacheFromConfig(config.Memory)
		if err != nil {
			return nil, err
		}

		return cache, nil

	case CacheTypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		cache, err := NewNATSKVCache(config.NATS)
		if err != nil {
			return nil, err
		}

		return cache, nil

	case CacheTypeNone:
		return NewNoOpCache(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCacheType, config.Type)
	}
}

// NewMemoryCacheFromConfig creates a memory cache from configuration.
func NewMemoryCacheFromConfig(config *MemoryCacheConfig) (*MemoryCache, error) {
	if config == nil {
		config = &MemoryCacheConfig{
			MaxSize:         DefaultCacheSize,
			CleanupInterval: DefaultCleanupInterval,
		}
	}

	interval := time.Minute

	if config.CleanupInterval != "" {
		parsed, err := time.ParseDuration(config.CleanupInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid cleanup interval %q: %w", config.CleanupInterval, err)
		}

		interval = parsed
	}

	return NewMemoryCache(config.MaxSize, WithCleanupInterval(interval)), nil
}

// NoOpCache is a cache that does nothing (no caching).
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// Get always returns an error (nothing cached).
func (c *NoOpCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	return nil, ErrCacheDisabled
}

// Set does nothing.
func (c *NoOpCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	return nil
}

// Delete does nothing.
func (c *NoOpCache) Delete(ctx context.Context, key string) error {
	return nil
}

// Clear does nothing.
func (c *NoOpCache) Clear(ctx context.Context) error {
	return nil
}

// Has always returns false.
func (c *NoOpCache) Has(ctx context.Context, key string) bool {
	return false
}

// InvalidateTags has nothing to remove.
func (c *NoOpCache) InvalidateTags(ctx context.Context, tags ...string) (int, error) {
	return 0, nil
}

// CacheBuilder helps build cache configurations.
type CacheBuilder struct {
	config *CacheConfig
}

// NewCacheBuilder creates a new cache builder.
func NewCacheBuilder() *CacheBuilder {
	return &CacheBuilder{
		config: &CacheConfig{
			Type: CacheTypeMemory,
		},
	}
}

// WithType sets the cache type.
func (b *CacheBuilder) WithType(cacheType CacheType) *CacheBuilder {
	b.config.Type = cacheType

	return b
}

// WithMemoryConfig sets memory cache configuration.
func (b *CacheBuilder) WithMemoryConfig(maxSize int, cleanupInterval string) *CacheBuilder {
	b.config.Memory = &MemoryCacheConfig{
		MaxSize:         maxSize,
		CleanupInterval: cleanupInterval,
	}

	return b
}

// WithNATSConfig sets NATS cache configuration.
func (b *CacheBuilder) WithNATSConfig(config *NATSKVConfig) *CacheBuilder {
	b.config.NATS = config

	return b
}

// Build creates the cache from the configuration.
func (b *CacheBuilder) Build() (Cache, error) {
	return NewCacheFromConfig(b.config)
}

// CacheChain layers caches, fastest first. Reads stop at the first hit
// and back-fill the layers above it; writes go to every layer.
type CacheChain struct {
	caches []Cache
}

// NewCacheChain creates a new cache chain.
func NewCacheChain(caches ...Cache) *CacheChain {
	return &CacheChain{
		caches: caches,
	}
}

// Get retrieves an item from the first layer that has it.
func (c *CacheChain) Get(ctx context.Context, key string) (*CacheEntry, error) {
	for i, cache := range c.caches {
		entry, err := cache.Get(ctx, key)
		if err != nil {
			continue
		}

		for _, upper := range c.caches[:i] {
			_ = upper.Set(ctx, key, entry)
		}

		return entry, nil
	}

	return nil, ErrKeyNotFoundInAnyCache
}

// Set stores an item in every layer.
func (c *CacheChain) Set(ctx context.Context, key string, entry *CacheEntry) error {
	return c.each(func(cache Cache) error {
		return cache.Set(ctx, key, entry)
	})
}

// Delete removes an item from every layer.
func (c *CacheChain) Delete(ctx context.Context, key string) error {
	return c.each(func(cache Cache) error {
		return cache.Delete(ctx, key)
	})
}

// Clear empties every layer.
func (c *CacheChain) Clear(ctx context.Context) error {
	return c.each(func(cache Cache) error {
		return cache.Clear(ctx)
	})
}

// Has checks if a key exists in any layer.
func (c *CacheChain) Has(ctx context.Context, key string) bool {
	for _, cache := range c.caches {
		if cache.Has(ctx, key) {
			return true
		}
	}

	return false
}

// InvalidateTags drops tagged entries from every layer that supports it.
// The count is the largest count reported by a single layer.
func (c *CacheChain) InvalidateTags(ctx context.Context, tags ...string) (int, error) {
	removed := 0

	err := c.each(func(cache Cache) error {
		invalidator, ok := cache.(TagInvalidator)
		if !ok {
			return nil
		}

		count, err := invalidator.InvalidateTags(ctx, tags...)
		removed = max(removed, count)

		return err
	})

	return removed, err
}

// each applies fn to every layer and joins the failures.
func (c *CacheChain) each(fn func(Cache) error) error {
	var result *multierror.Error

	for _, cache := range c.caches {
		if err := fn(cache); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}
