// Package strapi builds and sends queries against a Strapi content API.
//
// # Overview
//
// A Request is started from a Client with From (or FromUsers / FromMedia for
// the endpoints that answer without an envelope) and refined with chained
// calls. Each call compiles one fragment of the bracket-notation query
// (filters, populate, sort, pagination, fields, locale, publicationState);
// fragments are merged into one tree and encoded once when the request is
// sent. A concrete client, with HTTP transport and cache, is built by the
// strapiclient package.
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/strapi-client/pkg/strapi"
//	  "github.com/fivetwenty-io/strapi-client/pkg/strapiclient"
//	)
//
//	type Product struct {
//	  ID    int     `json:"id"`
//	  Slug  string  `json:"slug"`
//	  Price float64 `json:"price"`
//	}
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := strapiclient.New(ctx, &strapi.Config{BaseURL: "https://cms.example.com/api"})
//	  if err != nil { log.Fatal(err) }
//	  defer cli.Close()
//
//	  resp, err := strapi.From[[]Product](cli.Client, "products").
//	    EqualTo("slug", "shoes").
//	    Between("price", 10, 20).
//	    SortBy(strapi.Sort{Field: "id", Order: strapi.SortAsc}).
//	    Paginate(1, 25).
//	    Get(ctx)
//	  if err != nil { log.Fatal(err) } // invalid builder input
//	  if resp.IsError() { log.Fatal(resp.Error.Message) }
//	  _ = resp.Data
//	}
//
// # Field names
//
// When T (or the element type of a slice T) is a struct, field names given
// to filters, sorts, field selection and populate directives are checked
// against its json tags. Maps and interfaces accept any name.
//
// # Errors
//
// Invalid builder input is returned as a Go error by Err, URL and Get.
// Everything that can go wrong while sending the request resolves to a
// Response whose Error is set; see NormalizeError.
//
// # Caching
//
// Responses are memoized by URL and tags. A request with tags never expires
// on time and is dropped by Client.Invalidate; a request without tags lives
// for its revalidate duration, or forever when that is zero.
package strapi
