package strapi_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLogger records log calls.
type MockLogger struct {
	mu   sync.Mutex
	logs []map[string]interface{}
}

func (l *MockLogger) record(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logs = append(l.logs, map[string]interface{}{"level": level, "msg": msg, "fields": fields})
}

func (l *MockLogger) Debug(msg string, fields map[string]interface{}) { l.record("debug", msg, fields) }
func (l *MockLogger) Info(msg string, fields map[string]interface{})  { l.record("info", msg, fields) }
func (l *MockLogger) Warn(msg string, fields map[string]interface{})  { l.record("warn", msg, fields) }
func (l *MockLogger) Error(msg string, fields map[string]interface{}) { l.record("error", msg, fields) }

func (l *MockLogger) find(msg string) map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, entry := range l.logs {
		if entry["msg"] == msg {
			fields, _ := entry["fields"].(map[string]interface{})

			return fields
		}
	}

	return nil
}

// stubFetcher answers every request with the same body and records paths.
type stubFetcher struct {
	body  string
	err   error
	calls atomic.Int32

	mu       sync.Mutex
	requests []*strapi.HTTPRequest
}

func (f *stubFetcher) Fetch(ctx context.Context, req *strapi.HTTPRequest) (*strapi.HTTPResponse, error) {
	f.calls.Add(1)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	return &strapi.HTTPResponse{StatusCode: http.StatusOK, Body: []byte(f.body)}, nil
}

func (f *stubFetcher) lastRequest() *strapi.HTTPRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.requests) == 0 {
		return nil
	}

	return f.requests[len(f.requests)-1]
}

const productsBody = `{
  "data": [
    {
      "id": 1,
      "attributes": {
        "title": "Running shoes",
        "slug": "shoes",
        "price": 89.5,
        "publishedAt": "2024-03-01T10:00:00.000Z",
        "category": {"data": {"id": 7, "attributes": {"name": "Sport", "slug": "sport"}}},
        "images": {"data": [{"id": 3, "attributes": {"url": "/uploads/a.png", "name": "a.png"}}]}
      }
    }
  ],
  "meta": {"pagination": {"page": 1, "pageSize": 25, "pageCount": 1, "total": 1}}
}`

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestRequest_Get(t *testing.T) {
	t.Parallel()

	t.Run("normalizes the envelope", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{body: productsBody}
		client := strapi.NewClient(fetcher)

		resp, err := strapi.From[[]Product](client, "products").EqualTo("slug", "shoes").Get(context.Background())
		require.NoError(t, err)
		require.False(t, resp.IsError())
		require.Len(t, resp.Data, 1)

		product := resp.Data[0]
		assert.Equal(t, 1, product.ID)
		assert.Equal(t, "Running shoes", product.Title)
		assert.InDelta(t, 89.5, product.Price, 0.001)
		assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), product.PublishedAt.UTC())
		require.NotNil(t, product.Category)
		assert.Equal(t, 7, product.Category.ID)
		assert.Equal(t, "sport", product.Category.Slug)
		require.Len(t, product.Images, 1)
		assert.Equal(t, "/uploads/a.png", product.Images[0].URL)

		require.NotNil(t, resp.Meta)
		require.NotNil(t, resp.Meta.Pagination)
		assert.Equal(t, 1, resp.Meta.Pagination.Total)

		req := fetcher.lastRequest()
		require.NotNil(t, req)
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "products?filters[slug][$eq]=shoes", req.Path)
		assert.Equal(t, "products", req.Metadata[strapi.MetadataResource])
	})

	t.Run("flat documents decode as is", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{body: `{"data":{"id":4,"documentId":"abc","title":"Boots"},"meta":{}}`}
		client := strapi.NewClient(fetcher)

		resp, err := strapi.From[Product](client, "products/abc").Get(context.Background())
		require.NoError(t, err)
		require.False(t, resp.IsError())
		assert.Equal(t, 4, resp.Data.ID)
		assert.Equal(t, "Boots", resp.Data.Title)
	})

	t.Run("normalization off keeps the raw shape", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{body: productsBody}
		client := strapi.NewClient(fetcher, strapi.WithNormalization(false))

		resp, err := strapi.From[[]map[string]interface{}](client, "products").Get(context.Background())
		require.NoError(t, err)
		require.Len(t, resp.Data, 1)
		assert.Contains(t, resp.Data[0], "attributes")
		assert.Equal(t, 1, resp.Meta.Pagination.PageCount)
	})

	t.Run("user content is returned without envelope", func(t *testing.T) {
		t.Parallel()

		type User struct {
			ID       int    `json:"id"`
			Username string `json:"username"`
			Email    string `json:"email"`
		}

		fetcher := &stubFetcher{body: `[{"id":1,"username":"ana","email":"ana@example.com"}]`}
		client := strapi.NewClient(fetcher)

		request := strapi.FromUsers[[]User](client).EqualTo("username", "ana")
		assert.True(t, request.UserContent())

		resp, err := request.Get(context.Background())
		require.NoError(t, err)
		require.False(t, resp.IsError())
		require.Len(t, resp.Data, 1)
		assert.Equal(t, "ana", resp.Data[0].Username)
		assert.Nil(t, resp.Meta)
		assert.Equal(t, "users?filters[username][$eq]=ana", fetcher.lastRequest().Path)
	})

	t.Run("media resource", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{body: `[{"id":3,"url":"/uploads/a.png","name":"a.png"}]`}
		client := strapi.NewClient(fetcher)

		resp, err := strapi.FromMedia[[]Media](client).Get(context.Background())
		require.NoError(t, err)
		require.Len(t, resp.Data, 1)
		assert.Equal(t, "/uploads/a.png", resp.Data[0].URL)
		assert.Equal(t, "upload/files", fetcher.lastRequest().Path)
	})

	t.Run("transport failure resolves to an error envelope", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{err: errors.New("dial tcp: connection refused")}
		client := strapi.NewClient(fetcher)

		resp, err := strapi.From[[]Product](client, "products").Get(context.Background())
		require.NoError(t, err)
		require.True(t, resp.IsError())
		assert.Nil(t, resp.Data)
		assert.Equal(t, strapi.ErrorNameTransport, resp.Error.Name)
		assert.Contains(t, resp.Error.Message, "connection refused")
	})

	t.Run("API errors keep their body", func(t *testing.T) {
		t.Parallel()

		fetcher := strapi.FetcherFunc(func(ctx context.Context, req *strapi.HTTPRequest) (*strapi.HTTPResponse, error) {
			body := []byte(`{"data":null,"error":{"status":404,"name":"NotFoundError","message":"Not Found","details":{}}}`)

			return &strapi.HTTPResponse{StatusCode: http.StatusNotFound, Body: body}, strapi.ParseAPIError(http.StatusNotFound, body)
		})
		client := strapi.NewClient(fetcher)

		resp, err := strapi.From[Product](client, "products/missing").Get(context.Background())
		require.NoError(t, err)
		require.True(t, resp.IsError())
		assert.Equal(t, 404, resp.Error.Status)
		assert.Equal(t, "NotFoundError", resp.Error.Name)
		assert.Equal(t, "Not Found", resp.Error.Message)
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		fetcher := strapi.FetcherFunc(func(ctx context.Context, req *strapi.HTTPRequest) (*strapi.HTTPResponse, error) {
			return nil, ctx.Err()
		})
		client := strapi.NewClient(fetcher)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		resp, err := strapi.From[[]Product](client, "products").Get(ctx)
		require.NoError(t, err)
		require.True(t, resp.IsError())
		assert.Equal(t, strapi.ErrorNameCanceled, resp.Error.Name)
	})

	t.Run("undecodable body", func(t *testing.T) {
		t.Parallel()

		client := strapi.NewClient(&stubFetcher{body: `<html>oops</html>`})

		resp, err := strapi.From[[]Product](client, "products").Get(context.Background())
		require.NoError(t, err)
		require.True(t, resp.IsError())
		assert.Equal(t, strapi.ErrorNameDecode, resp.Error.Name)
	})

	t.Run("builder errors are returned as errors", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{body: productsBody}
		client := strapi.NewClient(fetcher)

		resp, err := strapi.From[[]Product](client, "products").EqualTo("colour", "red").Get(context.Background())
		require.ErrorIs(t, err, strapi.ErrUnknownField)
		assert.Nil(t, resp)
		assert.Equal(t, int32(0), fetcher.calls.Load())
	})

	t.Run("request without client", func(t *testing.T) {
		t.Parallel()

		_, err := products().Get(context.Background())
		require.ErrorIs(t, err, strapi.ErrNilClient)
	})
}

func TestRequest_GetCaching(t *testing.T) {
	t.Parallel()

	t.Run("responses are memoized by URL", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{body: productsBody}
		client := strapi.NewClient(fetcher, strapi.WithCache(strapi.NewMemoryCache(10)))
		ctx := context.Background()

		for n := 0; n < 3; n++ {
			resp, err := strapi.From[[]Product](client, "products").EqualTo("slug", "shoes").Get(ctx)
			require.NoError(t, err)
			require.False(t, resp.IsError())
		}

		_, err := strapi.From[[]Product](client, "products").EqualTo("slug", "boots").Get(ctx)
		require.NoError(t, err)

		assert.Equal(t, int32(2), fetcher.calls.Load())

		stats := client.CacheStats()
		assert.Equal(t, int64(2), stats.Hits)
		assert.Equal(t, int64(2), stats.Misses)
	})

	t.Run("tags invalidate", func(t *testing.T) {
		t.Parallel()

		fetcher := &stubFetcher{body: productsBody}
		client := strapi.NewClient(fetcher, strapi.WithCache(strapi.NewMemoryCache(10)))
		ctx := context.Background()

		request := strapi.From[[]Product](client, "products").SetTags("products").SetRevalidate(time.Nanosecond)

		for n := 0; n < 2; n++ {
			_, err := request.Get(ctx)
			require.NoError(t, err)
			time.Sleep(time.Millisecond)
		}

		assert.Equal(t, int32(1), fetcher.calls.Load(), "tags disable time based expiry")

		removed, err := client.Invalidate(ctx, "products")
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		_, err = request.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, int32(2), fetcher.calls.Load())
	})

	t.Run("failures are not cached", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		fetcher := strapi.FetcherFunc(func(ctx context.Context, req *strapi.HTTPRequest) (*strapi.HTTPResponse, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("timeout")
			}

			return &strapi.HTTPResponse{StatusCode: http.StatusOK, Body: []byte(productsBody)}, nil
		})
		client := strapi.NewClient(fetcher, strapi.WithCache(strapi.NewMemoryCache(10)))
		request := strapi.From[[]Product](client, "products")

		resp, err := request.Get(context.Background())
		require.NoError(t, err)
		assert.True(t, resp.IsError())

		resp, err = request.Get(context.Background())
		require.NoError(t, err)
		assert.False(t, resp.IsError())
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("default tags apply to new requests", func(t *testing.T) {
		t.Parallel()

		client := strapi.NewClient(&stubFetcher{body: productsBody}, strapi.WithDefaultTags("cms"), strapi.WithDefaultRevalidate(time.Minute))

		request := strapi.From[[]Product](client, "products")
		assert.Equal(t, []string{"cms"}, request.Tags())
		assert.Equal(t, time.Minute, request.Revalidate())
	})

	t.Run("invalidate without tag support", func(t *testing.T) {
		t.Parallel()

		client := strapi.NewClient(&stubFetcher{body: productsBody}, strapi.WithCache(plainCache{strapi.NewMemoryCache(1)}))

		_, err := client.Invalidate(context.Background(), "x")
		require.ErrorIs(t, err, strapi.ErrTagsUnsupported)

		removed, err := client.Invalidate(context.Background())
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}

func TestRequest_GetDebugLogging(t *testing.T) {
	t.Parallel()

	logger := &MockLogger{}
	client := strapi.NewClient(&stubFetcher{body: productsBody}, strapi.WithLogger(logger), strapi.WithDebugLogging(true))

	_, err := strapi.From[[]Product](client, "products").Get(context.Background())
	require.NoError(t, err)

	fields := logger.find("Response payload")
	require.NotNil(t, fields)
	assert.Equal(t, "products", fields["url"])
	assert.Equal(t, "small", fields["band"])
	assert.NotEmpty(t, fields["size"])

	quiet := &MockLogger{}
	client = strapi.NewClient(&stubFetcher{body: productsBody}, strapi.WithLogger(quiet))

	_, err = strapi.From[[]Product](client, "products").Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, quiet.find("Response payload"))

	_, err = strapi.From[[]Product](client, "products").WithDebug(true).Get(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, quiet.find("Response payload"))
}

func TestRequest_GetInterceptors(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{body: productsBody}
	logger := &MockLogger{}
	client := strapi.NewClient(fetcher,
		strapi.WithRequestInterceptor(strapi.AuthenticationInterceptor(func(context.Context) (string, error) {
			return "secret", nil
		})),
		strapi.WithRequestInterceptor(strapi.HeaderInterceptor(map[string]string{"X-Client": "test"})),
		strapi.WithRequestInterceptor(strapi.LoggingInterceptor(logger)),
		strapi.WithResponseInterceptor(strapi.LoggingResponseInterceptor(logger)),
	)

	_, err := strapi.From[[]Product](client, "products").Get(context.Background())
	require.NoError(t, err)

	req := fetcher.lastRequest()
	assert.Equal(t, "Bearer secret", req.Headers.Get("Authorization"))
	assert.Equal(t, "test", req.Headers.Get("X-Client"))
	assert.NotNil(t, logger.find("API Request"))
	assert.NotNil(t, logger.find("API Response"))
}

func TestFetchAllPages(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"1": `{"data":[{"id":1,"title":"a"},{"id":2,"title":"b"}],"meta":{"pagination":{"page":1,"pageSize":2,"pageCount":2,"total":3}}}`,
		"2": `{"data":[{"id":3,"title":"c"}],"meta":{"pagination":{"page":2,"pageSize":2,"pageCount":2,"total":3}}}`,
	}

	var paths []string

	fetcher := strapi.FetcherFunc(func(ctx context.Context, req *strapi.HTTPRequest) (*strapi.HTTPResponse, error) {
		paths = append(paths, req.Path)

		page := "1"
		if len(paths) == 2 {
			page = "2"
		}

		return &strapi.HTTPResponse{StatusCode: http.StatusOK, Body: []byte(pages[page])}, nil
	})
	client := strapi.NewClient(fetcher)

	all, err := strapi.FetchAllPages(context.Background(), strapi.From[[]Product](client, "products").EqualTo("slug", "x"), 2)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[2].Title)
	assert.Equal(t, []string{
		"products?filters[slug][$eq]=x&pagination[page]=1&pagination[pageSize]=2",
		"products?filters[slug][$eq]=x&pagination[page]=2&pagination[pageSize]=2",
	}, paths)
}

func TestFetchAllPages_ReplacesPagination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		request func(client *strapi.Client) *strapi.Request[[]Product]
	}{
		{
			name: "offset pagination",
			request: func(client *strapi.Client) *strapi.Request[[]Product] {
				return strapi.From[[]Product](client, "products").PaginateByOffset(10, 20)
			},
		},
		{
			name: "page pagination",
			request: func(client *strapi.Client) *strapi.Request[[]Product] {
				return strapi.From[[]Product](client, "products").Paginate(4, 50)
			},
		},
		{
			name: "pagination in the resource path",
			request: func(client *strapi.Client) *strapi.Request[[]Product] {
				return strapi.From[[]Product](client, "products?pagination[start]=10&pagination[limit]=20")
			},
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fetcher := &stubFetcher{body: productsBody}
			client := strapi.NewClient(fetcher)

			all, err := strapi.FetchAllPages(context.Background(), tt.request(client), 5)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, "products?pagination[page]=1&pagination[pageSize]=5", fetcher.lastRequest().Path)
		})
	}
}

func TestPaginationIterator_Error(t *testing.T) {
	t.Parallel()

	client := strapi.NewClient(&stubFetcher{err: errors.New("boom")})
	iterator := strapi.NewPaginationIterator(strapi.From[[]Product](client, "products"), 10)

	assert.False(t, iterator.HasNext(context.Background()))
	require.Error(t, iterator.Err())

	_, err := iterator.Next(context.Background())
	require.Error(t, err)

	empty := strapi.NewPaginationIterator(strapi.From[[]Product](strapi.NewClient(&stubFetcher{body: `{"data":[],"meta":{}}`}), "products"), 10)
	_, err = empty.Next(context.Background())
	require.ErrorIs(t, err, strapi.ErrNoMoreItems)
}
