package api

import (
	"context"
	"encoding/json"
	"fmt"
)

// Resource is a typed view of one entity collection on the backend.
type Resource[T any] struct {
	client *Client
	entity string
}

// NewResource binds c to the entity path.
func NewResource[T any](c *Client, entity string) *Resource[T] {
	return &Resource[T]{client: c, entity: entity}
}

// Entity returns the collection path segment.
func (r *Resource[T]) Entity() string {
	return r.entity
}

// FetchAll lists the collection and decodes its data array.
func (r *Resource[T]) FetchAll(ctx context.Context) ([]T, error) {
	resp, err := r.client.List(ctx, r.entity)
	if err != nil {
		return nil, err
	}
	var items []T
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return items, nil
	}
	if err := json.Unmarshal(resp.Data, &items); err != nil {
		return nil, &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("decode %s: %v", r.entity, err),
		}
	}
	return items, nil
}

// SetFlag patches a single boolean field on one entity.
func (r *Resource[T]) SetFlag(ctx context.Context, id, field string, value bool) error {
	_, err := r.client.Patch(ctx, r.entity, id, map[string]bool{field: value})
	return err
}
