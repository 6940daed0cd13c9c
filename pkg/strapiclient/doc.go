// Package strapiclient builds ready-to-use strapi clients.
//
// It layers configuration, HTTP transport, bearer authentication and the
// response cache on top of the query builder in the strapi package.
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/strapi-client/pkg/strapi"
//	  "github.com/fivetwenty-io/strapi-client/pkg/strapiclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  // Anonymous access; "cms.example.com" becomes https://cms.example.com/api.
//	  cli, err := strapiclient.NewWithEndpoint(ctx, "cms.example.com")
//	  if err != nil { log.Fatal(err) }
//	  defer cli.Close()
//
//	  // Or with an API token and retries:
//	  cli, err = strapiclient.New(ctx, &strapi.Config{
//	    BaseURL:  "https://cms.example.com/api",
//	    APIToken: "...",
//	    RetryMax: 3,
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  resp, err := strapi.From[[]map[string]any](cli.Client, "articles").Paginate(1, 10).Get(ctx)
//	  if err != nil { log.Fatal(err) }
//	  _ = resp
//	}
//
// # Caching
//
// Without Config.Cache or Config.CacheConfig responses are kept in a bounded
// in-memory cache whose expired entries are swept in the background. Set
// CacheConfig.Type to "nats" to share the cache through a JetStream KV
// bucket, or to "none" to turn caching off.
package strapiclient
