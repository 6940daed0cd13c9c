package strapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/strapi-client/pkg/qs"
)

// compileSort builds sort[i]=field:order for each directive in order. An
// empty order defaults to ascending.
func compileSort(sorts []Sort) (qs.Tree, error) {
	if len(sorts) == 0 {
		return nil, fmt.Errorf("%w: no sort directives", ErrEmptyValues)
	}

	node := make(qs.Tree, len(sorts))

	for i, sort := range sorts {
		if strings.TrimSpace(sort.Field) == "" {
			return nil, ErrEmptyField
		}

		order := sort.Order
		if order == "" {
			order = SortAsc
		}

		if order != SortAsc && order != SortDesc {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSortOrder, sort.Order)
		}

		node[strconv.Itoa(i)] = sort.Field + ":" + string(order)
	}

	return qs.Tree{rootSort: node}, nil
}

// ParseSort reads "field" or "field:order".
func ParseSort(s string) (Sort, error) {
	field, order, _ := strings.Cut(strings.TrimSpace(s), ":")
	if field == "" {
		return Sort{}, ErrEmptyField
	}

	result := Sort{Field: field, Order: SortOrder(strings.ToLower(order))}
	if result.Order == "" {
		result.Order = SortAsc
	}

	if result.Order != SortAsc && result.Order != SortDesc {
		return Sort{}, fmt.Errorf("%w: %q", ErrInvalidSortOrder, order)
	}

	return result, nil
}

func compilePaginate(page, pageSize int) (qs.Tree, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("%w: page %d and page size %d must be at least 1", ErrInvalidPagination, page, pageSize)
	}

	return qs.Tree{rootPagination: qs.Tree{
		"page":     strconv.Itoa(page),
		"pageSize": strconv.Itoa(pageSize),
	}}, nil
}

func compilePaginateByOffset(start, limit int) (qs.Tree, error) {
	if start < 0 || limit < 1 {
		return nil, fmt.Errorf("%w: start %d must not be negative and limit %d must be at least 1", ErrInvalidPagination, start, limit)
	}

	return qs.Tree{rootPagination: qs.Tree{
		"start": strconv.Itoa(start),
		"limit": strconv.Itoa(limit),
	}}, nil
}

func compileLocale(code string) (qs.Tree, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyLocale
	}

	return qs.Tree{rootLocale: code}, nil
}

func compileWithDraft() qs.Tree {
	return qs.Tree{rootPublicationState: string(PublicationPreview)}
}

func compileOnlyDraft() qs.Tree {
	return qs.Merge(
		compileWithDraft(),
		qs.Nest("true", rootFilters, "publishedAt", OpNull.Key()),
	)
}

func compileFields(fields []string) (qs.Tree, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields selected", ErrEmptyValues)
	}

	if err := checkFieldNames(fields); err != nil {
		return nil, err
	}

	return qs.Tree{rootFields: append([]string(nil), fields...)}, nil
}
