package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/spf13/cobra"
)

const deepMarker = "deep"

// queryFlags holds the query building flags shared by get and url.
type queryFlags struct {
	filters      []string
	deepFilters  []string
	sorts        []string
	fields       []string
	populateAll  bool
	populateWith []string
	page         int
	pageSize     int
	start        int
	limit        int
	locale       string
	draft        bool
	onlyDraft    bool
	users        bool
	media        bool
	raw          bool
	tags         []string
	revalidate   time.Duration
}

func (q *queryFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringArrayVar(&q.filters, "filter", nil, "filter as field:operator:value, e.g. price:gt:10 (repeatable)")
	flags.StringArrayVar(&q.deepFilters, "deep", nil, "relation filter as path:operator:value, e.g. category.slug:eq:shoes (repeatable)")
	flags.StringSliceVar(&q.sorts, "sort", nil, "sort as field[:asc|desc] (repeatable)")
	flags.StringSliceVar(&q.fields, "fields", nil, "fields to select")
	flags.BoolVar(&q.populateAll, "populate", false, "populate every relation one level deep")
	flags.StringArrayVar(&q.populateWith, "populate-with", nil, "populate a relation as relation[:field,...][:deep] (repeatable)")
	flags.IntVar(&q.page, "page", 0, "page number, starting at 1")
	flags.IntVar(&q.pageSize, "page-size", 0, "entries per page")
	flags.IntVar(&q.start, "start", -1, "offset of the first entry")
	flags.IntVar(&q.limit, "limit", 0, "number of entries from --start")
	flags.StringVar(&q.locale, "locale", "", "content locale")
	flags.BoolVar(&q.draft, "draft", false, "include draft entries")
	flags.BoolVar(&q.onlyDraft, "only-draft", false, "return draft entries only")
	flags.BoolVar(&q.users, "users", false, "query the users of the users-permissions plugin")
	flags.BoolVar(&q.media, "media", false, "query uploaded files")
	flags.BoolVar(&q.raw, "raw", false, "return the response envelope as sent")
	flags.StringSliceVar(&q.tags, "tags", nil, "cache tags")
	flags.DurationVar(&q.revalidate, "revalidate", 0, "cache lifetime, zero keeps responses until invalidated")
}

// builtin reports whether the resource is implied by --users or --media.
func (q *queryFlags) builtin() bool {
	return q.users || q.media
}

func (q *queryFlags) validate() error {
	if q.users && q.media {
		return fmt.Errorf("%w: --users and --media", constants.ErrConflictingFlags)
	}

	if q.draft && q.onlyDraft {
		return fmt.Errorf("%w: --draft and --only-draft", constants.ErrConflictingFlags)
	}

	if (q.page > 0 || q.pageSize > 0) && (q.start >= 0 || q.limit > 0) {
		return fmt.Errorf("%w: page and offset pagination", constants.ErrConflictingFlags)
	}

	if q.populateAll && len(q.populateWith) > 0 {
		return fmt.Errorf("%w: --populate and --populate-with", constants.ErrConflictingFlags)
	}

	return nil
}

// buildRequest applies the flags to a request for resource.
func buildRequest[T any](client *strapi.Client, resource string, q *queryFlags) (*strapi.Request[T], error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	request := strapi.From[T](client, resource)
	switch {
	case q.users:
		request = strapi.FromUsers[T](client)
	case q.media:
		request = strapi.FromMedia[T](client)
	}

	for _, raw := range q.filters {
		filter, err := parseFilterFlag(raw, constants.ErrInvalidFilterFlag)
		if err != nil {
			return nil, err
		}

		request = request.Filter(filter.field, filter.op, filter.value)
	}

	for _, raw := range q.deepFilters {
		filter, err := parseFilterFlag(raw, constants.ErrInvalidDeepFlag)
		if err != nil {
			return nil, err
		}

		request = request.FilterDeep(filter.field, filter.op, filter.value)
	}

	if len(q.sorts) > 0 {
		sorts := make([]strapi.Sort, 0, len(q.sorts))

		for _, raw := range q.sorts {
			sort, err := strapi.ParseSort(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid --sort value: %w", err)
			}

			sorts = append(sorts, sort)
		}

		request = request.SortBy(sorts...)
	}

	if len(q.fields) > 0 {
		request = request.SelectFields(q.fields...)
	}

	if q.populateAll {
		request = request.Populate()
	}

	for _, raw := range q.populateWith {
		relation, fields, deeper, err := parsePopulateFlag(raw)
		if err != nil {
			return nil, err
		}

		request = request.PopulateWith(relation, fields, deeper)
	}

	request = applyPagination(request, q)

	if q.locale != "" {
		request = request.SetLocale(q.locale)
	}

	switch {
	case q.draft:
		request = request.WithDraft()
	case q.onlyDraft:
		request = request.OnlyDraft()
	}

	if q.raw {
		request = request.WithNormalize(false)
	}

	if len(q.tags) > 0 {
		request = request.SetTags(q.tags...)
	}

	if q.revalidate != 0 {
		request = request.SetRevalidate(q.revalidate)
	}

	return request, request.Err() //nolint:wrapcheck // builder errors name the offending input
}

func applyPagination[T any](request *strapi.Request[T], q *queryFlags) *strapi.Request[T] {
	switch {
	case q.page > 0 || q.pageSize > 0:
		page, pageSize := q.page, q.pageSize
		if page == 0 {
			page = 1
		}

		if pageSize == 0 {
			pageSize = constants.DefaultPageSize
		}

		return request.Paginate(page, pageSize)

	case q.start >= 0 || q.limit > 0:
		start, limit := max(q.start, 0), q.limit
		if limit == 0 {
			limit = constants.DefaultPageSize
		}

		return request.PaginateByOffset(start, limit)
	}

	return request
}

type filterFlag struct {
	field string
	op    strapi.Operator
	value any
}

// parseFilterFlag splits field:operator[:value]. The value of list
// operators is comma separated; null and notNull take no value.
func parseFilterFlag(raw string, invalid error) (filterFlag, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" {
		return filterFlag{}, fmt.Errorf("%w: %q", invalid, raw)
	}

	op, err := strapi.ParseOperator(parts[1])
	if err != nil {
		return filterFlag{}, fmt.Errorf("%w: %w", invalid, err)
	}

	filter := filterFlag{field: strings.TrimSpace(parts[0]), op: op}

	switch op {
	case strapi.OpNull, strapi.OpNotNull:
		filter.value = true
		if len(parts) == 3 && parts[2] != "" {
			filter.value = parts[2]
		}

		return filter, nil

	case strapi.OpIn, strapi.OpNotIn, strapi.OpBetween:
		if len(parts) < 3 {
			return filterFlag{}, fmt.Errorf("%w: %q has no value", invalid, raw)
		}

		filter.value = strings.Split(parts[2], ",")

		return filter, nil

	default:
		if len(parts) < 3 {
			return filterFlag{}, fmt.Errorf("%w: %q has no value", invalid, raw)
		}

		filter.value = parts[2]

		return filter, nil
	}
}

// parsePopulateFlag splits relation[:field,...][:deep].
func parsePopulateFlag(raw string) (string, []string, bool, error) {
	parts := strings.Split(raw, ":")
	if len(parts) > 3 || strings.TrimSpace(parts[0]) == "" {
		return "", nil, false, fmt.Errorf("%w: %q", constants.ErrInvalidPopulateFlag, raw)
	}

	relation := strings.TrimSpace(parts[0])

	var (
		fields []string
		deeper bool
	)

	for i, part := range parts[1:] {
		switch {
		case part == deepMarker && i == len(parts)-2:
			deeper = true
		case i == 0 && part != "":
			fields = strings.Split(part, ",")
		case part != "":
			return "", nil, false, fmt.Errorf("%w: %q", constants.ErrInvalidPopulateFlag, raw)
		}
	}

	return relation, fields, deeper, nil
}
