package strapiclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/fivetwenty-io/strapi-client/pkg/strapiclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Article struct {
	ID          int       `json:"id"`
	DocumentID  string    `json:"documentId"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	PublishedAt time.Time `json:"publishedAt"`
	Author      *struct {
		Name string `json:"name"`
	} `json:"author"`
}

const articlesBody = `{
  "data": [
    {
      "id": 1,
      "attributes": {
        "documentId": "a1",
        "title": "Hello",
        "slug": "hello",
        "publishedAt": "2024-01-02T03:04:05.000Z",
        "author": {"data": {"id": 2, "attributes": {"name": "Ann"}}}
      }
    }
  ],
  "meta": {"pagination": {"page": 1, "pageSize": 10, "pageCount": 1, "total": 1}}
}`

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires config", func(t *testing.T) {
		t.Parallel()

		_, err := strapiclient.New(context.Background(), nil)
		require.ErrorIs(t, err, strapi.ErrConfigRequired)
	})

	t.Run("requires base URL", func(t *testing.T) {
		t.Parallel()

		_, err := strapiclient.New(context.Background(), &strapi.Config{})
		require.ErrorIs(t, err, strapi.ErrBaseURLRequired)
	})

	t.Run("rejects invalid settings", func(t *testing.T) {
		t.Parallel()

		_, err := strapiclient.New(context.Background(), &strapi.Config{BaseURL: "https://cms.example.com", RetryMax: -1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})

	t.Run("rejects unknown cache type", func(t *testing.T) {
		t.Parallel()

		_, err := strapiclient.New(context.Background(), &strapi.Config{
			BaseURL:     "https://cms.example.com",
			CacheConfig: &strapi.CacheConfig{Type: "redis"},
		})
		require.ErrorIs(t, err, strapi.ErrUnsupportedCacheType)
	})

	t.Run("creates client with endpoint", func(t *testing.T) {
		t.Parallel()

		client, err := strapiclient.NewWithEndpoint(context.Background(), "cms.example.com/")
		require.NoError(t, err)
		defer client.Close()

		assert.Equal(t, "https://cms.example.com/api", client.BaseURL())
		assert.IsType(t, &strapi.MemoryCache{}, client.Cache())
	})

	t.Run("does not modify the caller's config", func(t *testing.T) {
		t.Parallel()

		config := &strapi.Config{BaseURL: "cms.example.com"}

		client, err := strapiclient.New(context.Background(), config)
		require.NoError(t, err)
		defer client.Close()

		assert.Equal(t, "cms.example.com", config.BaseURL)
	})
}

func TestNormalizeBaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{input: "cms.example.com", expected: "https://cms.example.com/api"},
		{input: "http://localhost:1337/", expected: "http://localhost:1337/api"},
		{input: "https://cms.example.com/api/", expected: "https://cms.example.com/api"},
		{input: "https://cms.example.com/v2/content", expected: "https://cms.example.com/v2/content"},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, strapiclient.NormalizeBaseURL(tt.input))
		})
	}
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_EndToEnd(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requests.Add(1)

		assert.Equal(t, "Bearer api-token", request.Header.Get("Authorization"))
		assert.Equal(t, "docs", request.Header.Get("X-Tenant"))

		switch request.URL.Path {
		case "/api/articles":
			assert.Equal(t,
				"filters[slug][$eq]=hello&pagination[page]=1&pagination[pageSize]=10&populate[author][fields][]=name",
				request.URL.RawQuery)

			writer.Header().Set("Content-Type", "application/json")
			_, _ = writer.Write([]byte(articlesBody))

		default:
			writer.WriteHeader(http.StatusNotFound)
			_, _ = writer.Write([]byte(`{"data":null,"error":{"status":404,"name":"NotFoundError","message":"Not Found","details":{}}}`))
		}
	}))
	defer server.Close()

	registry := prometheus.NewRegistry()
	ctx := context.Background()

	client, err := strapiclient.New(ctx, &strapi.Config{
		BaseURL:  server.URL,
		APIToken: "api-token",
		Headers:  map[string]string{"X-Tenant": "docs"},
		Metrics:  strapi.NewMetrics(registry),
	})
	require.NoError(t, err)
	defer client.Close()

	request := strapi.From[[]Article](client.Client, "articles").
		EqualTo("slug", "hello").
		Paginate(1, 10).
		PopulateWith("author", []string{"name"}, false).
		SetTags("articles")

	resp, err := request.Get(ctx)
	require.NoError(t, err)
	require.False(t, resp.IsError(), "unexpected error: %+v", resp.Error)
	require.Len(t, resp.Data, 1)

	article := resp.Data[0]
	assert.Equal(t, 1, article.ID)
	assert.Equal(t, "a1", article.DocumentID)
	assert.Equal(t, "Hello", article.Title)
	require.NotNil(t, article.Author)
	assert.Equal(t, "Ann", article.Author.Name)
	assert.Equal(t, 2024, article.PublishedAt.Year())
	assert.Equal(t, 1, resp.Meta.Pagination.Total)

	// Served from cache until the tag is invalidated.
	_, err = request.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load())

	removed, err := client.Invalidate(ctx, "articles")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = request.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())

	missing, err := strapi.From[Article](client.Client, "articles/unknown").Get(ctx)
	require.NoError(t, err)
	require.True(t, missing.IsError())
	assert.Equal(t, 404, missing.Error.Status)
	assert.Equal(t, "NotFoundError", missing.Error.Name)

	count, err := testutil.GatherAndCount(registry, "strapi_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "success and error series")
}

func TestClient_TransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client, err := strapiclient.New(context.Background(), &strapi.Config{
		BaseURL:     server.URL,
		CacheConfig: &strapi.CacheConfig{Type: strapi.CacheTypeNone},
	})
	require.NoError(t, err)
	defer client.Close()

	resp, err := strapi.From[[]Article](client.Client, "articles").Get(context.Background())
	require.NoError(t, err)
	require.True(t, resp.IsError())
	assert.Equal(t, strapi.ErrorNameTransport, resp.Error.Name)
	assert.Equal(t, 0, resp.Error.Status)
}
