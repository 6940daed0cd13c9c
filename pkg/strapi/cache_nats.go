package strapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/nats-io/nats.go"
)

// DefaultNATSBucket is the KV bucket used when none is configured.
const DefaultNATSBucket = "strapi-cache"

const natsKeyPrefix = "k."

// NATSKVConfig configures the NATS JetStream key/value cache.
type NATSKVConfig struct {
	// URL of the NATS server; nats.DefaultURL when empty.
	URL string `mapstructure:"url" yaml:"url"`
	// Bucket is created on first use when it does not exist.
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	// TTL is the bucket-wide maximum age of a value. Zero keeps values
	// until they are deleted.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
	// Replicas for a newly created bucket.
	Replicas int `mapstructure:"replicas" yaml:"replicas"`
	// Name identifies the connection on the server.
	Name string `mapstructure:"name" yaml:"name"`
}

// KVStore is the subset of nats.KeyValue the cache relies on.
type KVStore interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
	Delete(key string, opts ...nats.DeleteOpt) error
	Keys(opts ...nats.WatchOpt) ([]string, error)
}

// NATSKVCache stores entries in a JetStream KV bucket. Keys are hashed to
// fit the bucket's key alphabet and the full key is kept in the entry, so
// a hash collision reads as a miss.
type NATSKVCache struct {
	kv   KVStore
	conn *nats.Conn
	now  func() time.Time
}

// NewNATSKVCache connects to NATS and opens (or creates) the bucket.
func NewNATSKVCache(config *NATSKVConfig) (*NATSKVCache, error) {
	if config == nil {
		return nil, ErrNATSConfigRequired
	}

	url := config.URL
	if url == "" {
		url = nats.DefaultURL
	}

	bucket := config.Bucket
	if bucket == "" {
		bucket = DefaultNATSBucket
	}

	opts := []nats.Option{}
	if config.Name != "" {
		opts = append(opts, nats.Name(config.Name))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("failed to open JetStream context: %w", err)
	}

	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucket,
			Description: "strapi response cache",
			TTL:         config.TTL,
			Replicas:    config.Replicas,
		})
	}

	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("failed to open KV bucket %s: %w", bucket, err)
	}

	cache := NewNATSKVCacheFromStore(kv)
	cache.conn = conn

	return cache, nil
}

// NewNATSKVCacheFromStore wraps an already opened bucket.
func NewNATSKVCacheFromStore(kv KVStore) *NATSKVCache {
	return &NATSKVCache{kv: kv, now: time.Now}
}

// Close closes the connection opened by NewNATSKVCache.
func (c *NATSKVCache) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// Get retrieves an entry.
func (c *NATSKVCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	storeKey := natsKey(key)

	entry, err := c.load(storeKey)
	if err != nil {
		return nil, err
	}

	if entry.Key != key {
		return nil, fmt.Errorf("%w: %q", ErrCacheMiss, key)
	}

	if entry.Expired(c.now()) {
		_ = c.kv.Delete(storeKey)

		return nil, ErrEntryExpired
	}

	return entry, nil
}

// Set stores an entry.
func (c *NATSKVCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	stored := entry.clone()
	stored.Key = key

	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if _, err := c.kv.Put(natsKey(key), payload); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	return nil
}

// Delete removes an entry.
func (c *NATSKVCache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(natsKey(key))
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}

// Clear removes every cache entry from the bucket.
func (c *NATSKVCache) Clear(ctx context.Context) error {
	keys, err := c.keys()
	if err != nil {
		return err
	}

	for _, storeKey := range keys {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("clear interrupted: %w", err)
		}

		if err := c.kv.Delete(storeKey); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
			return fmt.Errorf("failed to delete cache entry: %w", err)
		}
	}

	return nil
}

// Has checks if a live entry exists for key.
func (c *NATSKVCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// InvalidateTags scans the bucket and removes entries carrying any of tags.
func (c *NATSKVCache) InvalidateTags(ctx context.Context, tags ...string) (int, error) {
	keys, err := c.keys()
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, storeKey := range keys {
		if err := ctx.Err(); err != nil {
			return removed, fmt.Errorf("invalidation interrupted: %w", err)
		}

		entry, err := c.load(storeKey)
		if err != nil {
			continue
		}

		if !entry.HasTag(tags...) {
			continue
		}

		if err := c.kv.Delete(storeKey); err != nil {
			return removed, fmt.Errorf("failed to delete cache entry: %w", err)
		}

		removed++
	}

	return removed, nil
}

func (c *NATSKVCache) load(storeKey string) (*CacheEntry, error) {
	value, err := c.kv.Get(storeKey)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, ErrCacheMiss
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry CacheEntry

	if err := json.Unmarshal(value.Value(), &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}

	return &entry, nil
}

func (c *NATSKVCache) keys() ([]string, error) {
	keys, err := c.kv.Keys()
	if errors.Is(err, nats.ErrNoKeysFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list cache keys: %w", err)
	}

	out := keys[:0]

	for _, key := range keys {
		if strings.HasPrefix(key, natsKeyPrefix) {
			out = append(out, key)
		}
	}

	return out, nil
}

func natsKey(key string) string {
	return fmt.Sprintf("%s%016x", natsKeyPrefix, xxhash.Sum64String(key))
}
