// Package repository provides the generic persistence contract shared by the
// registry resources, with an in-memory and a gorm-backed implementation.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ErrNotFound is returned when no entity exists for an id.
var ErrNotFound = errors.New("record not found")

// Entity is implemented (on the pointer receiver) by every stored resource.
type Entity interface {
	GetID() uuid.UUID
	SetID(id uuid.UUID)
	// SearchText returns the text matched by free-text search.
	SearchText() string
	// FilterValue returns the value compared against a query filter, and
	// false when the entity has no such attribute.
	FilterValue(field string) (string, bool)
}

// EntityPtr constrains PT to be *T implementing Entity.
type EntityPtr[T any] interface {
	*T
	Entity
}

// Query is the pagination and filter contract used by every list endpoint.
type Query struct {
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Search   string            `json:"search,omitempty"`
	Filters  map[string]string `json:"filters,omitempty"`
}

// Normalize clamps paging to sane bounds.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// Offset returns the number of items skipped before the page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// WithFilter returns a copy of q with one more filter set.
func (q Query) WithFilter(field, value string) Query {
	filters := make(map[string]string, len(q.Filters)+1)
	for k, v := range q.Filters {
		filters[k] = v
	}
	filters[field] = value
	q.Filters = filters
	return q
}

// Page is one page of a list result.
type Page[T any] struct {
	Items      []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func newPage[T any](items []T, total int64, q Query) *Page[T] {
	pages := 0
	if total > 0 {
		pages = int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	}
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize, TotalPages: pages}
}

// Repository is the CRUD + list contract.
type Repository[T any] interface {
	Create(ctx context.Context, item *T) error
	Get(ctx context.Context, id uuid.UUID) (*T, error)
	Update(ctx context.Context, item *T) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, q Query) (*Page[T], error)
}

// All walks every page of a query and returns the concatenated items.
func All[T any](ctx context.Context, repo Repository[T], q Query) ([]T, error) {
	q.PageSize = MaxPageSize
	q.Page = 1
	var out []T
	for {
		page, err := repo.List(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if q.Page >= page.TotalPages {
			return out, nil
		}
		q.Page++
	}
}
