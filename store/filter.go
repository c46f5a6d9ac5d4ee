package store

import (
	"cmp"
	"strings"

	"github.com/5-logic/the-sync-frontend-sub001/domain"
)

// SearchKey is the filter key holding the free-text search query.
const SearchKey = "search"

// Filters is the store's filter state. Keys other than SearchKey are
// interpreted by the store's FilterFunc.
type Filters map[string]any

// Search returns the trimmed search query, if any.
func (f Filters) Search() string {
	q, _ := f[SearchKey].(string)
	return strings.TrimSpace(q)
}

// String returns the filter value for key when it is a non-empty string.
func (f Filters) String(key string) (string, bool) {
	v, ok := f[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Bool returns the filter value for key when it is a bool.
func (f Filters) Bool(key string) (bool, bool) {
	v, ok := f[key].(bool)
	return v, ok
}

func (f Filters) clone() Filters {
	out := make(Filters, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// SortFunc orders items; it follows the slices.SortFunc convention.
type SortFunc[T any] func(a, b T) int

// FilterFunc keeps the items matching filters. It must not modify items.
type FilterFunc[T any] func(item T, filters Filters) bool

// SearchFields extracts the text an item is searched by.
type SearchFields[T any] func(item T) []string

// NewestFirst orders entities by creation time, newest first, then by id.
func NewestFirst[T domain.Entity](a, b T) int {
	if c := b.Created().Compare(a.Created()); c != 0 {
		return c
	}
	return cmp.Compare(a.EntityID(), b.EntityID())
}

func matchesSearch[T any](item T, query string, fields SearchFields[T]) bool {
	if query == "" || fields == nil {
		return true
	}
	query = strings.ToLower(query)
	for _, f := range fields(item) {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}
