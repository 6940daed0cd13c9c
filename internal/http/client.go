package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fivetwenty-io/strapi-client/internal/auth"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultUserAgent is sent when no other User-Agent is configured.
const DefaultUserAgent = "strapi-client-go"

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-Id"

// Request represents an HTTP request to the content API. Path is relative to
// the base URL and may already carry an encoded query string.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
}

// Response represents an HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	RequestID  string
	Duration   time.Duration
}

// Client is the HTTP client for the content API.
type Client struct {
	baseURL      string
	httpClient   *retryablehttp.Client
	tokenManager auth.TokenManager
	logger       strapi.Logger
	userAgent    string
	debug        bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger strapi.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDebug logs every request and response.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithRetryConfig retries connection errors, 5xx and 429 responses up to
// retryMax times with exponential backoff between waitMin and waitMax.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retryMax
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// NewClient creates a client for baseURL. tokenManager may be nil for
// anonymous access. Retries are off until WithRetryConfig is applied.
func NewClient(baseURL string, tokenManager auth.TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil
	retryClient.CheckRetry = retryablehttp.DefaultRetryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   retryClient,
		tokenManager: tokenManager,
		logger:       strapi.NoopLogger{},
		userAgent:    DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(client)
	}

	retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			client.logger.Warn("Retrying HTTP request", map[string]interface{}{
				"method":     req.Method,
				"url":        req.URL.String(),
				"attempt":    attempt,
				"request_id": req.Header.Get(HeaderRequestID),
			})
		}
	}

	return client
}

// BaseURL returns the API root requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do performs an HTTP request. Responses with a status of 400 or more are
// returned together with a *strapi.APIError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	target := c.resolve(req.Path)

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(HeaderRequestID, requestID)

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if err := c.authorize(ctx, httpReq); err != nil {
		return nil, err
	}

	if c.debug {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method":     req.Method,
			"url":        target,
			"request_id": requestID,
		})
	}

	started := time.Now()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
		RequestID:  requestID,
		Duration:   time.Since(started),
	}

	if c.debug {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status":     resp.StatusCode,
			"size":       len(body),
			"duration":   resp.Duration.String(),
			"request_id": requestID,
		})
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return resp, strapi.ParseAPIError(resp.StatusCode, body)
	}

	return resp, nil
}

func (c *Client) authorize(ctx context.Context, req *retryablehttp.Request) error {
	if c.tokenManager == nil {
		return nil
	}

	token, err := c.tokenManager.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return nil
}

// resolve joins path onto the base URL. The query already present in path
// is sent as is, so bracket keys reach the server unescaped.
func (c *Client) resolve(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}
