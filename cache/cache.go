package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key or name.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilCache     = errors.New("cache: cache is nil")
	ErrInvalidKey   = errors.New("cache: key is invalid")
	ErrKeyTooLong   = errors.New("cache: key exceeds max length")
	ErrCorruptEntry = errors.New("cache: persisted entry is corrupt")
	ErrDuplicate    = errors.New("cache: name already registered")
	ErrUnknownName  = errors.New("cache: name not registered")
)

// Entry is a single cached value with its lifetime.
type Entry[T any] struct {
	Key        string
	Data       T
	InsertedAt time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the entry is past its expiry at now.
func (e Entry[T]) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Stats is a read-only snapshot of a cache.
type Stats struct {
	Name       string
	Count      int
	Oldest     time.Time // InsertedAt of the oldest live entry
	Newest     time.Time // InsertedAt of the newest live entry
	Hits       int64
	Misses     int64
	Evictions  int64
	Persistent bool
}

// Namespace is the type-independent view of a Cache used by Manager.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Clear and Invalidate never fail; persistence errors are logged.
type Namespace interface {
	Name() string
	Invalidate(ctx context.Context, key string)
	Clear(ctx context.Context)
	Stats() Stats
	ShouldFetch(key string, force bool) bool
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
