package strapi

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Config represents client configuration for building a strapi.Client.
//
// The concrete transport is built by pkg/strapiclient. BaseURL is the API
// root, usually ending in "/api"; resource names passed to From are
// relative to it. When APIToken is set, every request carries it as a
// bearer token.
//
// Responses are cached through Cache when set, otherwise through a backend
// built from CacheConfig. A nil CacheConfig and nil Cache give an in-memory
// cache. Tags set on a request, or DefaultTags, switch its entries from
// time-based expiry to tag-based invalidation.
type Config struct {
	// BaseURL of the content API (e.g., "https://cms.example.com/api").
	BaseURL string `mapstructure:"url" yaml:"url"`
	// APIToken is sent as "Authorization: Bearer <token>" when not empty.
	APIToken string `mapstructure:"token" yaml:"token"`

	// Normalize flattens response envelopes; defaults to true.
	Normalize *bool `mapstructure:"normalize" yaml:"normalize,omitempty"`
	// Debug logs response sizes for every Get.
	Debug bool `mapstructure:"debug" yaml:"debug"`
	// Logger receives client and transport logs.
	Logger Logger `mapstructure:"-" yaml:"-"`

	// Cache overrides CacheConfig with a ready backend.
	Cache Cache `mapstructure:"-" yaml:"-"`
	// CacheConfig selects and configures a cache backend.
	CacheConfig *CacheConfig `mapstructure:"cache" yaml:"cache,omitempty"`
	// DefaultRevalidate is the cache lifetime of requests that set none.
	DefaultRevalidate time.Duration `mapstructure:"revalidate" yaml:"revalidate"`
	// DefaultTags are applied to requests that set none.
	DefaultTags []string `mapstructure:"tags" yaml:"tags,omitempty"`

	// HTTPTimeout bounds each HTTP call; zero leaves it to the context.
	HTTPTimeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// RetryMax is the number of retries for transient failures. Zero
	// disables retries.
	RetryMax int `mapstructure:"retry_max" yaml:"retry_max"`
	// RetryWaitMin: minimum backoff between retries. Applied when RetryMax > 0.
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min" yaml:"retry_wait_min"`
	// RetryWaitMax: maximum backoff between retries. Applied when RetryMax > 0.
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max" yaml:"retry_wait_max"`
	// UserAgent overrides the default User-Agent header.
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent,omitempty"`
	// Headers are added to every request.
	Headers map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`

	// Metrics records request and cache metrics when set.
	Metrics *Metrics `mapstructure:"-" yaml:"-"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigRequired
	}

	err := validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required.Error(ErrBaseURLRequired.Error()), is.URL),
		validation.Field(&c.RetryMax, validation.Min(0)),
		validation.Field(&c.RetryWaitMin, validation.Min(time.Duration(0))),
		validation.Field(&c.RetryWaitMax, validation.Min(c.RetryWaitMin)),
		validation.Field(&c.HTTPTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.DefaultRevalidate, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// NormalizeEnabled reports the effective normalization setting.
func (c *Config) NormalizeEnabled() bool {
	return c.Normalize == nil || *c.Normalize
}

// Client issues requests built with From, FromUsers and FromMedia.
type Client struct {
	fetcher           Fetcher
	chain             *InterceptorChain
	memoizer          *Memoizer
	logger            Logger
	metrics           *Metrics
	normalize         bool
	debug             bool
	defaultTags       []string
	defaultRevalidate time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger.
func WithLogger(logger Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMemoizer sets the memoizer responses are cached through.
func WithMemoizer(memoizer *Memoizer) ClientOption {
	return func(c *Client) {
		c.memoizer = memoizer
	}
}

// WithCache caches responses in cache.
func WithCache(cache Cache) ClientOption {
	return func(c *Client) {
		c.memoizer = NewMemoizer(cache)
	}
}

// WithNormalization sets the default normalization of new requests.
func WithNormalization(enabled bool) ClientOption {
	return func(c *Client) {
		c.normalize = enabled
	}
}

// WithDebugLogging turns on response size logging for new requests.
func WithDebugLogging(enabled bool) ClientOption {
	return func(c *Client) {
		c.debug = enabled
	}
}

// WithDefaultTags sets the cache tags of new requests.
func WithDefaultTags(tags ...string) ClientOption {
	return func(c *Client) {
		c.defaultTags = slices.Clone(tags)
	}
}

// WithDefaultRevalidate sets the cache lifetime of new requests.
func WithDefaultRevalidate(d time.Duration) ClientOption {
	return func(c *Client) {
		c.defaultRevalidate = d
	}
}

// WithMetrics records request metrics.
func WithMetrics(metrics *Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithRequestInterceptor appends a request interceptor.
func WithRequestInterceptor(interceptor RequestInterceptor) ClientOption {
	return func(c *Client) {
		c.chain.AddRequestInterceptor(interceptor)
	}
}

// WithResponseInterceptor appends a response interceptor.
func WithResponseInterceptor(interceptor ResponseInterceptor) ClientOption {
	return func(c *Client) {
		c.chain.AddResponseInterceptor(interceptor)
	}
}

// NewClient creates a client that sends requests through fetcher.
func NewClient(fetcher Fetcher, opts ...ClientOption) *Client {
	client := &Client{
		fetcher:   fetcher,
		chain:     NewInterceptorChain(),
		logger:    NoopLogger{},
		normalize: true,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.memoizer == nil {
		client.memoizer = NewMemoizer(NewNoOpCache())
	}

	return client
}

// From starts a request for a content type, e.g. From[[]Product](c, "products").
// The resource may carry a query string of its own; builder calls merge into it.
func From[T any](c *Client, resource string) *Request[T] {
	return newRequest[T](c, resource, false)
}

// FromUsers starts a request for the users of the users-permissions plugin.
// Its responses are returned as sent, without an envelope.
func FromUsers[T any](c *Client) *Request[T] {
	return newRequest[T](c, UsersResource, true)
}

// FromMedia starts a request for uploaded files. Its responses are returned
// as sent, without an envelope.
func FromMedia[T any](c *Client) *Request[T] {
	return newRequest[T](c, MediaResource, true)
}

// Invalidate drops every cached response carrying one of tags and returns
// how many were removed.
func (c *Client) Invalidate(ctx context.Context, tags ...string) (int, error) {
	if len(tags) == 0 {
		return 0, nil
	}

	removed, err := c.memoizer.Invalidate(ctx, tags...)
	if err != nil {
		return removed, fmt.Errorf("failed to invalidate tags %v: %w", tags, err)
	}

	c.logger.Info("Invalidated cached responses", map[string]interface{}{
		"tags":    tags,
		"removed": removed,
	})

	return removed, nil
}

// CacheStats returns the memoizer counters.
func (c *Client) CacheStats() CacheStats {
	return c.memoizer.GetStats()
}

// Logger returns the client's logger.
func (c *Client) Logger() Logger {
	return c.logger
}

// fetch performs one GET through the interceptor chain and returns the body.
func (c *Client) fetch(ctx context.Context, resource, target string) ([]byte, error) {
	req := &HTTPRequest{
		Method:   http.MethodGet,
		Path:     target,
		Headers:  make(http.Header),
		Metadata: map[string]interface{}{MetadataResource: resource},
	}

	resp, err := c.chain.Fetch(ctx, c.fetcher, req)
	if err != nil {
		return nil, err //nolint:wrapcheck // classified by NormalizeError
	}

	return resp.Body, nil
}
