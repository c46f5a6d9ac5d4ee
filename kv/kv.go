package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kv: store is closed")

// Store is a minimal durable key-value store.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Get returns (nil, false, nil) on miss; Remove is idempotent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}
