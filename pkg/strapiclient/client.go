package strapiclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/strapi-client/internal/client"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// DefaultAPIPath is the REST prefix Strapi serves content under.
const DefaultAPIPath = "/api"

// Client is a strapi.Client with its transport and cache. Pass Client.Client
// to strapi.From and release resources with Close.
type Client struct {
	*strapi.Client

	inner *client.Client
}

// Cache returns the cache responses are memoized in.
func (c *Client) Cache() strapi.Cache {
	return c.inner.Cache()
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.inner.BaseURL()
}

// Close stops background cache maintenance and closes the cache backend.
func (c *Client) Close() {
	c.inner.Close()
}

// New creates a client for the content API described by config. The base
// URL gets an https scheme when it has none and the /api prefix when it has
// no path.
func New(ctx context.Context, config *strapi.Config) (*Client, error) {
	if config == nil {
		return nil, strapi.ErrConfigRequired
	}

	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, strapi.ErrBaseURLRequired
	}

	normalized := *config
	normalized.BaseURL = NormalizeBaseURL(config.BaseURL)

	inner, err := client.New(ctx, &normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return &Client{Client: inner.Client, inner: inner}, nil
}

// NewWithEndpoint creates an anonymous client for endpoint.
func NewWithEndpoint(ctx context.Context, endpoint string) (*Client, error) {
	return New(ctx, &strapi.Config{BaseURL: endpoint})
}

// NewWithToken creates a client that authenticates with an API token.
func NewWithToken(ctx context.Context, endpoint, token string) (*Client, error) {
	return New(ctx, &strapi.Config{BaseURL: endpoint, APIToken: token})
}

// NormalizeBaseURL adds a missing scheme and API prefix and drops trailing
// slashes. Explicit paths are kept as given.
func NormalizeBaseURL(endpoint string) string {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Path != "" {
		return endpoint
	}

	return endpoint + DefaultAPIPath
}
