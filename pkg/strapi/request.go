package strapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/fivetwenty-io/strapi-client/pkg/qs"
	"github.com/mitchellh/mapstructure"
)

// Request is a query against one resource, built by chaining calls.
//
// Every builder method returns a new Request and leaves its receiver
// untouched, so a partially built request can be shared and extended from
// several goroutines. Fragments from each call are merged into one query
// tree that is encoded once, by URL or Get. Calls that target the same
// bracket path keep the later value.
//
// The first invalid builder call is remembered; later calls are ignored
// and the error is returned by Err, URL and Get.
type Request[T any] struct {
	client      *Client
	resource    string
	query       qs.Tree
	tags        []string
	revalidate  time.Duration
	normalize   bool
	debug       bool
	userContent bool
	schema      *schema
	err         error
}

func newRequest[T any](c *Client, resource string, userContent bool) *Request[T] {
	r := &Request[T]{
		client:      c,
		resource:    strings.TrimLeft(strings.TrimSpace(resource), "/"),
		query:       qs.Tree{},
		normalize:   true,
		userContent: userContent,
		schema:      schemaOf[T](),
	}

	if c != nil {
		r.tags = slices.Clone(c.defaultTags)
		r.revalidate = c.defaultRevalidate
		r.normalize = c.normalize
		r.debug = c.debug
	}

	if base, _ := qs.SplitURL(r.resource); base == "" {
		r.err = fmt.Errorf("%w: resource name is empty", ErrEmptyPath)
	}

	return r
}

func (r *Request[T]) clone() *Request[T] {
	next := *r
	next.tags = slices.Clone(r.tags)

	return &next
}

// apply returns a copy with fragment merged into the query, or with err
// recorded when the receiver has no error yet.
func (r *Request[T]) apply(fragment qs.Tree, err error) *Request[T] {
	if r.err != nil {
		return r
	}

	next := r.clone()

	if err != nil {
		next.err = err

		return next
	}

	next.query = qs.Merge(r.query, fragment)

	return next
}

// Err returns the first builder error.
func (r *Request[T]) Err() error {
	return r.err
}

// Resource returns the resource path the request was started with.
func (r *Request[T]) Resource() string {
	return r.resource
}

// UserContent reports whether responses are returned without an envelope.
func (r *Request[T]) UserContent() bool {
	return r.userContent
}

// Tags returns the cache tags.
func (r *Request[T]) Tags() []string {
	return slices.Clone(r.tags)
}

// Revalidate returns the cache lifetime. It is ignored while tags are set.
func (r *Request[T]) Revalidate() time.Duration {
	return r.revalidate
}

// Query returns a copy of the accumulated query tree.
func (r *Request[T]) Query() qs.Tree {
	return r.query.Clone()
}

// URL encodes the accumulated query onto the resource path.
func (r *Request[T]) URL() (string, error) {
	if r.err != nil {
		return "", r.err
	}

	target, err := qs.MergeURL(r.resource, r.query)
	if err != nil {
		return "", fmt.Errorf("failed to build URL: %w", err)
	}

	return target, nil
}

// Filter adds filters[field][$op]=value for a field of the resource.
func (r *Request[T]) Filter(field string, op Operator, value any) *Request[T] {
	if r.err != nil {
		return r
	}

	if err := r.schema.check(field); err != nil {
		return r.apply(nil, err)
	}

	return r.apply(compileFilter(field, op, value))
}

// EqualTo filters on field == value.
func (r *Request[T]) EqualTo(field string, value any) *Request[T] {
	return r.Filter(field, OpEq, value)
}

// NotEqualTo filters on field != value.
func (r *Request[T]) NotEqualTo(field string, value any) *Request[T] {
	return r.Filter(field, OpNe, value)
}

// LessThan filters on field < value.
func (r *Request[T]) LessThan(field string, value any) *Request[T] {
	return r.Filter(field, OpLt, value)
}

// LessThanOrEqualTo filters on field <= value.
func (r *Request[T]) LessThanOrEqualTo(field string, value any) *Request[T] {
	return r.Filter(field, OpLte, value)
}

// GreaterThan filters on field > value.
func (r *Request[T]) GreaterThan(field string, value any) *Request[T] {
	return r.Filter(field, OpGt, value)
}

// GreaterThanOrEqualTo filters on field >= value.
func (r *Request[T]) GreaterThanOrEqualTo(field string, value any) *Request[T] {
	return r.Filter(field, OpGte, value)
}

// ContainsCaseSensitive filters on field containing value, matching case.
func (r *Request[T]) ContainsCaseSensitive(field, value string) *Request[T] {
	return r.Filter(field, OpContains, value)
}

// NotContainsCaseSensitive filters on field not containing value, matching case.
func (r *Request[T]) NotContainsCaseSensitive(field, value string) *Request[T] {
	return r.Filter(field, OpNotContains, value)
}

// Contains filters on field containing value, ignoring case.
func (r *Request[T]) Contains(field, value string) *Request[T] {
	return r.Filter(field, OpContainsi, value)
}

// NotContains filters on field not containing value, ignoring case.
func (r *Request[T]) NotContains(field, value string) *Request[T] {
	return r.Filter(field, OpNotContainsi, value)
}

// IsNull filters on field being null.
func (r *Request[T]) IsNull(field string) *Request[T] {
	return r.Filter(field, OpNull, true)
}

// IsNotNull filters on field not being null.
func (r *Request[T]) IsNotNull(field string) *Request[T] {
	return r.Filter(field, OpNotNull, true)
}

// Between filters on low <= field <= high.
func (r *Request[T]) Between(field string, low, high any) *Request[T] {
	return r.Filter(field, OpBetween, []any{low, high})
}

// StartsWith filters on field starting with value.
func (r *Request[T]) StartsWith(field, value string) *Request[T] {
	return r.Filter(field, OpStartsWith, value)
}

// EndsWith filters on field ending with value.
func (r *Request[T]) EndsWith(field, value string) *Request[T] {
	return r.Filter(field, OpEndsWith, value)
}

// In filters on field being one of values. A single slice argument is
// taken as the list itself.
func (r *Request[T]) In(field string, values ...any) *Request[T] {
	return r.Filter(field, OpIn, listOperand(values))
}

// NotIn filters on field being none of values. A single slice argument is
// taken as the list itself.
func (r *Request[T]) NotIn(field string, values ...any) *Request[T] {
	return r.Filter(field, OpNotIn, listOperand(values))
}

// FilterDeep filters on the leaf of a dotted relation path, e.g.
// FilterDeep("subcategories.products.slug", OpEq, "shoes").
func (r *Request[T]) FilterDeep(path string, op Operator, value any) *Request[T] {
	if r.err != nil {
		return r
	}

	segments, err := ParsePath(path)
	if err != nil {
		return r.apply(nil, err)
	}

	return r.FilterDeepPath(segments, op, value)
}

// FilterDeepPath is FilterDeep with a pre-split path. Only the first
// segment is checked against the fields of T.
func (r *Request[T]) FilterDeepPath(path []string, op Operator, value any) *Request[T] {
	if r.err != nil {
		return r
	}

	if len(path) > 0 {
		if err := r.schema.check(path[0]); err != nil {
			return r.apply(nil, err)
		}
	}

	return r.apply(compileRelationalFilter(path, op, value))
}

// SortBy sets sort[i]=field:order for each directive.
func (r *Request[T]) SortBy(sorts ...Sort) *Request[T] {
	if r.err != nil {
		return r
	}

	for _, sort := range sorts {
		if err := r.schema.check(sort.Field); err != nil {
			return r.apply(nil, err)
		}
	}

	fragment, err := compileSort(sorts)
	if err != nil {
		return r.apply(nil, err)
	}

	// A new sort replaces the previous one rather than merging index by index.
	next := r.clone()
	next.query = qs.Merge(withoutRoot(r.query, rootSort), fragment)

	return next
}

// Paginate selects a page; both arguments start at 1.
func (r *Request[T]) Paginate(page, pageSize int) *Request[T] {
	return r.apply(compilePaginate(page, pageSize))
}

// withoutPagination drops every pagination parameter, including any the
// resource path carries, so page and offset pagination never mix.
func (r *Request[T]) withoutPagination() *Request[T] {
	if r.err != nil {
		return r
	}

	next := r.clone()
	next.query = withoutRoot(r.query, rootPagination)

	base, raw := qs.SplitURL(r.resource)
	if embedded, err := qs.Decode(raw); err == nil {
		if _, ok := embedded[rootPagination]; ok {
			next.resource = qs.AppendQuery(base, qs.Encode(withoutRoot(embedded, rootPagination)))
		}
	}

	return next
}

// PaginateByOffset selects limit entries starting at start.
func (r *Request[T]) PaginateByOffset(start, limit int) *Request[T] {
	return r.apply(compilePaginateByOffset(start, limit))
}

// WithDraft includes draft entries alongside published ones.
func (r *Request[T]) WithDraft() *Request[T] {
	return r.apply(compileWithDraft(), nil)
}

// OnlyDraft returns draft entries only.
func (r *Request[T]) OnlyDraft() *Request[T] {
	return r.apply(compileOnlyDraft(), nil)
}

// SetLocale selects the content locale.
func (r *Request[T]) SetLocale(code string) *Request[T] {
	return r.apply(compileLocale(code))
}

// SelectFields limits the returned scalar fields.
func (r *Request[T]) SelectFields(fields ...string) *Request[T] {
	if r.err != nil {
		return r
	}

	for _, field := range fields {
		if err := r.schema.check(field); err != nil {
			return r.apply(nil, err)
		}
	}

	return r.apply(compileFields(fields))
}

// Populate populates every relation one level deep. It cannot be combined
// with PopulateWith or PopulateDeep on the same request.
func (r *Request[T]) Populate() *Request[T] {
	if _, ok := r.query[rootPopulate].(qs.Tree); ok {
		return r.apply(nil, fmt.Errorf("%w: populate=* after a targeted populate", ErrPopulateConflict))
	}

	return r.apply(compilePopulateAll(), nil)
}

// populateTargeted fails when populate=* is already set, since a targeted
// populate would silently replace it.
func (r *Request[T]) populateTargeted(relation string) *Request[T] {
	if _, ok := r.query[rootPopulate].(string); ok {
		return r.apply(nil, fmt.Errorf("%w: populate %q after populate=*", ErrPopulateConflict, relation))
	}

	return nil
}

// PopulateWith populates one relation, limited to fields when given and
// with its own relations too when deeper is set.
func (r *Request[T]) PopulateWith(relation string, fields []string, deeper bool) *Request[T] {
	if r.err != nil {
		return r
	}

	if root, _, _ := strings.Cut(relation, "."); root != "" {
		if err := r.schema.check(root); err != nil {
			return r.apply(nil, err)
		}
	}

	if failed := r.populateTargeted(relation); failed != nil {
		return failed
	}

	return r.apply(compilePopulateWith(relation, fields, deeper))
}

// PopulateDeep populates relations to any depth.
func (r *Request[T]) PopulateDeep(descriptors ...PopulateDescriptor) *Request[T] {
	if r.err != nil {
		return r
	}

	for _, descriptor := range descriptors {
		if root, _, _ := strings.Cut(descriptor.Path, "."); root != "" {
			if err := r.schema.check(root); err != nil {
				return r.apply(nil, err)
			}
		}

		if failed := r.populateTargeted(descriptor.Path); failed != nil {
			return failed
		}
	}

	return r.apply(compilePopulateDeep(descriptors))
}

// SetTags sets the cache tags. Tagged responses do not expire on time.
func (r *Request[T]) SetTags(tags ...string) *Request[T] {
	if r.err != nil {
		return r
	}

	next := r.clone()
	next.tags = slices.Clone(tags)

	return next
}

// SetRevalidate sets the cache lifetime; zero means no expiry.
func (r *Request[T]) SetRevalidate(d time.Duration) *Request[T] {
	if r.err != nil {
		return r
	}

	if d < 0 {
		return r.apply(nil, fmt.Errorf("%w: %s", ErrInvalidRevalidate, d))
	}

	next := r.clone()
	next.revalidate = d

	return next
}

// WithNormalize turns response normalization on or off.
func (r *Request[T]) WithNormalize(enabled bool) *Request[T] {
	next := r.clone()
	next.normalize = enabled

	return next
}

// WithDebug turns response size logging on or off.
func (r *Request[T]) WithDebug(enabled bool) *Request[T] {
	next := r.clone()
	next.debug = enabled

	return next
}

// Get sends the request and returns its envelope.
//
// The error return is reserved for invalid builder input. Transport, API,
// cache and decoding failures produce an envelope whose Error is set, so
// callers check resp.IsError().
func (r *Request[T]) Get(ctx context.Context) (*Response[T], error) {
	if r.err != nil {
		return nil, r.err
	}

	if r.client == nil {
		return nil, ErrNilClient
	}

	target, err := r.URL()
	if err != nil {
		return nil, err
	}

	resource, _ := qs.SplitURL(r.resource)
	started := time.Now()

	producer := r.client.memoizer.Memoize(
		func(ctx context.Context) ([]byte, error) {
			return r.client.fetch(ctx, resource, target)
		},
		r.cacheKey(target),
		CachePolicy{Revalidate: r.revalidate, Tags: r.tags},
	)

	body, err := producer(ctx)

	var resp *Response[T]
	if err != nil {
		resp = errorResponse[T](NormalizeError(err))
	} else {
		resp = r.decode(body)
	}

	outcome := OutcomeSuccess
	if resp.IsError() {
		outcome = OutcomeError

		r.client.logger.Debug("Request resolved to an error envelope", map[string]interface{}{
			"url":    target,
			"name":   resp.Error.Name,
			"status": resp.Error.Status,
		})
	}

	r.client.metrics.RecordRequest(resource, outcome, time.Since(started))

	if r.debug {
		logPayloadSize(r.client.logger, target, resp, len(body))
	}

	return resp, nil
}

// cacheKey identifies the response by method, URL and sorted tags.
func (r *Request[T]) cacheKey(target string) []string {
	tags := slices.Clone(r.tags)
	slices.Sort(tags)
	tags = slices.Compact(tags)

	return append([]string{http.MethodGet, target}, tags...)
}

func (r *Request[T]) decode(body []byte) *Response[T] {
	if r.userContent {
		var data T

		if err := json.Unmarshal(body, &data); err != nil {
			return errorResponse[T](NormalizeError(fmt.Errorf("%w: %w", ErrDecode, err)))
		}

		return &Response[T]{Data: data}
	}

	if !r.normalize {
		var resp Response[T]

		if err := json.Unmarshal(body, &resp); err != nil {
			return errorResponse[T](NormalizeError(fmt.Errorf("%w: %w", ErrDecode, err)))
		}

		return &resp
	}

	envelope := NormalizeSuccess(body)
	if envelope.IsError() {
		return errorResponse[T](envelope)
	}

	data, err := decodeData[T](envelope.Data)
	if err != nil {
		return errorResponse[T](NormalizeError(fmt.Errorf("%w: %w", ErrDecode, err)))
	}

	return &Response[T]{Data: data, Meta: envelope.Meta}
}

// decodeData converts normalized JSON values into T, reading json tags.
func decodeData[T any](raw interface{}) (T, error) {
	var out T

	if raw == nil {
		return out, nil
	}

	if direct, ok := raw.(T); ok {
		return direct, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Squash:           true,
		Result:           &out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return out, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return out, fmt.Errorf("failed to decode data: %w", err)
	}

	return out, nil
}

func errorResponse[T any](envelope Envelope) *Response[T] {
	return &Response[T]{Error: envelope.Error}
}

func withoutRoot(tree qs.Tree, root string) qs.Tree {
	if _, ok := tree[root]; !ok {
		return tree
	}

	out := make(qs.Tree, len(tree))

	for key, value := range tree {
		if key != root {
			out[key] = value
		}
	}

	return out
}
