package client

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/strapi-client/internal/http"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
)

// Fetcher sends strapi requests through the HTTP client.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a strapi.Fetcher over httpClient.
func NewFetcher(httpClient *http.Client) *Fetcher {
	return &Fetcher{httpClient: httpClient}
}

// Fetch implements strapi.Fetcher. API errors are returned together with
// the response that carried them.
func (f *Fetcher) Fetch(ctx context.Context, req *strapi.HTTPRequest) (*strapi.HTTPResponse, error) {
	headers := make(map[string]string, len(req.Headers))
	for key := range req.Headers {
		headers[key] = req.Headers.Get(key)
	}

	resp, err := f.httpClient.Do(ctx, &http.Request{
		Method:  req.Method,
		Path:    req.Path,
		Headers: headers,
	})
	if resp == nil {
		return nil, fmt.Errorf("fetching %s: %w", req.Path, err)
	}

	out := &strapi.HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}

	if err != nil {
		return out, fmt.Errorf("fetching %s: %w", req.Path, err)
	}

	return out, nil
}
