package client

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/strapi-client/internal/auth"
	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/internal/http"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// Client bundles a strapi.Client with the transport, token manager and
// cache it was built from.
type Client struct {
	*strapi.Client

	httpClient   *http.Client
	tokenManager auth.TokenManager
	cache        strapi.Cache
	stop         context.CancelFunc
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *strapi.Config) []http.Option {
	var httpOpts []http.Option

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(config.Logger))
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeout(config.HTTPTimeout))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, http.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	return httpOpts
}

// createCache returns the configured cache, building one from CacheConfig
// when no ready backend is given.
func createCache(config *strapi.Config) (strapi.Cache, error) {
	if config.Cache != nil {
		return config.Cache, nil
	}

	cache, err := strapi.NewCacheFromConfig(config.CacheConfig)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	return cache, nil
}

// createClientOptions maps config onto strapi.Client options.
func createClientOptions(config *strapi.Config, memoizer *strapi.Memoizer) []strapi.ClientOption {
	opts := []strapi.ClientOption{
		strapi.WithMemoizer(memoizer),
		strapi.WithNormalization(config.NormalizeEnabled()),
		strapi.WithDebugLogging(config.Debug),
		strapi.WithDefaultRevalidate(config.DefaultRevalidate),
		strapi.WithMetrics(config.Metrics),
	}

	if config.Logger != nil {
		opts = append(opts, strapi.WithLogger(config.Logger))
	}

	if len(config.DefaultTags) > 0 {
		opts = append(opts, strapi.WithDefaultTags(config.DefaultTags...))
	}

	if len(config.Headers) > 0 {
		opts = append(opts, strapi.WithRequestInterceptor(strapi.HeaderInterceptor(config.Headers)))
	}

	if config.Debug && config.Logger != nil {
		opts = append(opts,
			strapi.WithRequestInterceptor(strapi.LoggingInterceptor(config.Logger)),
			strapi.WithResponseInterceptor(strapi.LoggingResponseInterceptor(config.Logger)),
		)
	}

	if config.Metrics != nil {
		opts = append(opts,
			strapi.WithRequestInterceptor(strapi.MetricsRequestInterceptor()),
			strapi.WithResponseInterceptor(strapi.MetricsResponseInterceptor(config.Metrics)),
		)
	}

	return opts
}

// New creates a client from config. Expired memory cache entries are swept
// in the background until ctx is done or Close is called.
func New(ctx context.Context, config *strapi.Config) (*Client, error) {
	if config == nil {
		return nil, strapi.ErrConfigRequired
	}

	return NewWithTokenManager(ctx, config, auth.NewStaticTokenManager(config.APIToken))
}

// NewWithTokenManager creates a client that takes its bearer tokens from
// tokenManager instead of config.APIToken.
func NewWithTokenManager(ctx context.Context, config *strapi.Config, tokenManager auth.TokenManager) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // already describes the config
	}

	cache, err := createCache(config)
	if err != nil {
		return nil, err
	}

	httpClient := http.NewClient(config.BaseURL, tokenManager, createHTTPClientOptions(config)...)

	memoizerOpts := []strapi.MemoizerOption{strapi.WithMemoizerMetrics(config.Metrics)}
	if config.Logger != nil {
		memoizerOpts = append(memoizerOpts, strapi.WithMemoizerLogger(config.Logger))
	}

	memoizer := strapi.NewMemoizer(cache, memoizerOpts...)

	runCtx, stop := context.WithCancel(ctx)

	if memory, ok := cache.(*strapi.MemoryCache); ok {
		go memory.RunCleanup(runCtx)
	}

	return &Client{
		Client:       strapi.NewClient(NewFetcher(httpClient), createClientOptions(config, memoizer)...),
		httpClient:   httpClient,
		tokenManager: tokenManager,
		cache:        cache,
		stop:         stop,
	}, nil
}

// GetTokenManager returns the token manager for this client.
func (c *Client) GetTokenManager() auth.TokenManager {
	return c.tokenManager
}

// Cache returns the cache responses are memoized in.
func (c *Client) Cache() strapi.Cache {
	return c.cache
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.httpClient.BaseURL()
}

// Close stops background cache maintenance and releases the cache backend.
func (c *Client) Close() {
	c.stop()

	if closer, ok := c.cache.(interface{ Close() }); ok {
		closer.Close()
	}
}
