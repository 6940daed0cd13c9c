package strapi

import (
	"context"
	"fmt"
)

// PaginationIterator walks the pages of a collection request.
type PaginationIterator[E any] struct {
	request  *Request[[]E]
	pageSize int
	page     int
	current  []E
	index    int
	done     bool
	err      error
}

// NewPaginationIterator pages through request, pageSize entries at a time.
// Pagination already set on request is replaced.
func NewPaginationIterator[E any](request *Request[[]E], pageSize int) *PaginationIterator[E] {
	return &PaginationIterator[E]{
		request:  request.withoutPagination(),
		pageSize: pageSize,
	}
}

// HasNext returns true if there are more items to iterate.
func (p *PaginationIterator[E]) HasNext(ctx context.Context) bool {
	if p.err != nil {
		return false
	}

	if p.index < len(p.current) {
		return true
	}

	if p.done {
		return false
	}

	p.fetchNext(ctx)

	return p.err == nil && p.index < len(p.current)
}

// Next returns the next item.
func (p *PaginationIterator[E]) Next(ctx context.Context) (E, error) {
	var zero E

	if !p.HasNext(ctx) {
		if p.err != nil {
			return zero, p.err
		}

		return zero, ErrNoMoreItems
	}

	item := p.current[p.index]
	p.index++

	return item, nil
}

// Err returns the error that stopped iteration, if any.
func (p *PaginationIterator[E]) Err() error {
	return p.err
}

func (p *PaginationIterator[E]) fetchNext(ctx context.Context) {
	p.page++

	resp, err := p.request.Paginate(p.page, p.pageSize).Get(ctx)
	if err != nil {
		p.err = err

		return
	}

	if resp.IsError() {
		p.err = &APIError{StatusCode: resp.Error.Status, Body: *resp.Error}

		return
	}

	p.current = resp.Data
	p.index = 0

	pagination := resp.Meta.pagination()
	if len(resp.Data) == 0 || pagination == nil || p.page >= pagination.PageCount {
		p.done = true
	}
}

// FetchAllPages returns every entry of a collection request.
func FetchAllPages[E any](ctx context.Context, request *Request[[]E], pageSize int) ([]E, error) {
	iterator := NewPaginationIterator(request, pageSize)

	var all []E

	for iterator.HasNext(ctx) {
		item, err := iterator.Next(ctx)
		if err != nil {
			return all, err
		}

		all = append(all, item)
	}

	if err := iterator.Err(); err != nil {
		return all, fmt.Errorf("failed to fetch page %d: %w", iterator.page, err)
	}

	return all, nil
}
