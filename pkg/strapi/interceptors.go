package strapi

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Metadata keys set on HTTPRequest by the client and the interceptors.
const (
	MetadataResource  = "resource"
	MetadataStartTime = "start_time"
)

// HTTPRequest is an outgoing API call that can be intercepted.
type HTTPRequest struct {
	Method   string
	Path     string
	Headers  http.Header
	Metadata map[string]interface{}
}

// HTTPResponse is the answer to an HTTPRequest. Error is set when the call
// failed, in which case StatusCode may be zero.
type HTTPResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Error      error
}

// Fetcher performs API calls. The returned error describes transport or
// API failures; a non-nil response may accompany it.
type Fetcher interface {
	Fetch(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	return f(ctx, req)
}

// RequestInterceptor is called before a request is sent.
type RequestInterceptor func(ctx context.Context, req *HTTPRequest) error

// ResponseInterceptor is called after a response is received.
type ResponseInterceptor func(ctx context.Context, req *HTTPRequest, resp *HTTPResponse) error

// InterceptorChain manages a chain of interceptors.
type InterceptorChain struct {
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

// NewInterceptorChain creates a new interceptor chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{}
}

// AddRequestInterceptor adds a request interceptor to the chain.
func (c *InterceptorChain) AddRequestInterceptor(interceptor RequestInterceptor) {
	c.requestInterceptors = append(c.requestInterceptors, interceptor)
}

// AddResponseInterceptor adds a response interceptor to the chain.
func (c *InterceptorChain) AddResponseInterceptor(interceptor ResponseInterceptor) {
	c.responseInterceptors = append(c.responseInterceptors, interceptor)
}

// ExecuteRequestInterceptors runs all request interceptors in order.
func (c *InterceptorChain) ExecuteRequestInterceptors(ctx context.Context, req *HTTPRequest) error {
	for _, interceptor := range c.requestInterceptors {
		err := interceptor(ctx, req)
		if err != nil {
			return fmt.Errorf("request interceptor failed: %w", err)
		}
	}

	return nil
}

// ExecuteResponseInterceptors runs all response interceptors in order.
func (c *InterceptorChain) ExecuteResponseInterceptors(ctx context.Context, req *HTTPRequest, resp *HTTPResponse) error {
	for _, interceptor := range c.responseInterceptors {
		err := interceptor(ctx, req, resp)
		if err != nil {
			return fmt.Errorf("response interceptor failed: %w", err)
		}
	}

	return nil
}

// Fetch runs the request interceptors, the fetcher and then the response
// interceptors. Response interceptors also see failed calls.
func (c *InterceptorChain) Fetch(ctx context.Context, fetcher Fetcher, req *HTTPRequest) (*HTTPResponse, error) {
	if err := c.ExecuteRequestInterceptors(ctx, req); err != nil {
		return nil, err
	}

	resp, fetchErr := fetcher.Fetch(ctx, req)
	if resp == nil {
		resp = &HTTPResponse{}
	}

	if fetchErr != nil {
		resp.Error = fetchErr
	}

	if err := c.ExecuteResponseInterceptors(ctx, req, resp); err != nil {
		return nil, err
	}

	if fetchErr != nil {
		return resp, fetchErr //nolint:wrapcheck // the fetcher's error is the caller's error
	}

	return resp, nil
}

// LoggingInterceptor logs requests.
func LoggingInterceptor(logger Logger) RequestInterceptor {
	return func(ctx context.Context, req *HTTPRequest) error {
		logger.Debug("API Request", map[string]interface{}{
			"method": req.Method,
			"path":   req.Path,
		})

		return nil
	}
}

// LoggingResponseInterceptor logs responses.
func LoggingResponseInterceptor(logger Logger) ResponseInterceptor {
	return func(ctx context.Context, req *HTTPRequest, resp *HTTPResponse) error {
		fields := map[string]interface{}{
			"method":      req.Method,
			"path":        req.Path,
			"status_code": resp.StatusCode,
		}

		if resp.Error != nil {
			fields["error"] = resp.Error.Error()
			logger.Error("API Response Error", fields)
		} else {
			logger.Debug("API Response", fields)
		}

		return nil
	}
}

// AuthenticationInterceptor adds a bearer token when the provider yields
// one. An empty token leaves the request unauthenticated.
func AuthenticationInterceptor(tokenProvider func(context.Context) (string, error)) RequestInterceptor {
	return func(ctx context.Context, req *HTTPRequest) error {
		token, err := tokenProvider(ctx)
		if err != nil {
			return fmt.Errorf("failed to get authentication token: %w", err)
		}

		if token == "" {
			return nil
		}

		if req.Headers == nil {
			req.Headers = make(http.Header)
		}

		req.Headers.Set("Authorization", "Bearer "+token)

		return nil
	}
}

// HeaderInterceptor adds custom headers to requests.
func HeaderInterceptor(headers map[string]string) RequestInterceptor {
	return func(ctx context.Context, req *HTTPRequest) error {
		if req.Headers == nil {
			req.Headers = make(http.Header)
		}

		for key, value := range headers {
			req.Headers.Set(key, value)
		}

		return nil
	}
}

// MetricsRequestInterceptor records the request start time.
func MetricsRequestInterceptor() RequestInterceptor {
	return func(ctx context.Context, req *HTTPRequest) error {
		if req.Metadata == nil {
			req.Metadata = make(map[string]interface{})
		}

		req.Metadata[MetadataStartTime] = time.Now()

		return nil
	}
}

// MetricsResponseInterceptor records upstream latency and response size,
// labelled with the resource the request was built for.
func MetricsResponseInterceptor(metrics *Metrics) ResponseInterceptor {
	return func(ctx context.Context, req *HTTPRequest, resp *HTTPResponse) error {
		resource, _ := req.Metadata[MetadataResource].(string)

		if startTime, ok := req.Metadata[MetadataStartTime].(time.Time); ok {
			metrics.RecordFetch(resource, time.Since(startTime))
		}

		if resp.Error == nil {
			metrics.RecordResponseSize(resource, len(resp.Body))
		}

		return nil
	}
}
