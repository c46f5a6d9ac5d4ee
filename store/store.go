package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/5-logic/the-sync-frontend-sub001/api"
	"github.com/5-logic/the-sync-frontend-sub001/cache"
	"github.com/5-logic/the-sync-frontend-sub001/domain"
	"github.com/5-logic/the-sync-frontend-sub001/observe"
)

// CacheKey is the cache entry holding the whole collection.
const CacheKey = "all"

// FetchFunc retrieves the full collection from the backend.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Store is a typed, cache-backed entity collection.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Ownership: returned slices are copies; items themselves are values.
type Store[T domain.Entity] struct {
	name     string
	fetch    FetchFunc[T]
	cache    *cache.Cache[[]T]
	sortFn   SortFunc[T]
	filterFn FilterFunc[T]
	search   SearchFields[T]
	logger   observe.Logger
	metrics  observe.Metrics
	now      func() time.Time
	group    singleflight.Group

	// wmu orders commits so the cache is written in commit order.
	wmu sync.Mutex

	mu       sync.RWMutex
	items    []T
	filtered []T
	filters  Filters
	loading  bool
	lastErr  *Error
}

// Option configures a Store.
type Option[T domain.Entity] func(*Store[T])

// WithSort replaces the default newest-created-first order.
func WithSort[T domain.Entity](fn SortFunc[T]) Option[T] {
	return func(s *Store[T]) { s.sortFn = fn }
}

// WithFilter sets the predicate applied before text search.
func WithFilter[T domain.Entity](fn FilterFunc[T]) Option[T] {
	return func(s *Store[T]) { s.filterFn = fn }
}

// WithSearchFields enables text search over the extracted fields.
func WithSearchFields[T domain.Entity](fn SearchFields[T]) Option[T] {
	return func(s *Store[T]) { s.search = fn }
}

// WithLogger sets the store's logger.
func WithLogger[T domain.Entity](l observe.Logger) Option[T] {
	return func(s *Store[T]) { s.logger = l }
}

// WithMetrics records where each fetch was served from.
func WithMetrics[T domain.Entity](m observe.Metrics) Option[T] {
	return func(s *Store[T]) { s.metrics = m }
}

// WithClock overrides time.Now for error timestamps.
func WithClock[T domain.Entity](now func() time.Time) Option[T] {
	return func(s *Store[T]) { s.now = now }
}

// New creates a store named name that loads through fetch and caches in c.
func New[T domain.Entity](name string, fetch FetchFunc[T], c *cache.Cache[[]T], opts ...Option[T]) (*Store[T], error) {
	if fetch == nil {
		return nil, fmt.Errorf("store %s: fetch function is nil", name)
	}
	if c == nil {
		return nil, fmt.Errorf("store %s: %w", name, cache.ErrNilCache)
	}
	s := &Store[T]{
		name:    name,
		fetch:   fetch,
		cache:   c,
		sortFn:  NewestFirst[T],
		logger:  observe.NopLogger(),
		metrics: observe.NopMetrics(),
		now:     time.Now,
		filters: Filters{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithScope(observe.Scope{Entity: name})
	return s, nil
}

// Name returns the entity-type name.
func (s *Store[T]) Name() string {
	return s.name
}

// Cache returns the store's cache.
func (s *Store[T]) Cache() *cache.Cache[[]T] {
	return s.cache
}

// FetchItems loads the collection. Unless force is set, a live cache entry
// is used without going to the network. Failures are recorded in LastError
// and also returned.
func (s *Store[T]) FetchItems(ctx context.Context, force bool) error {
	scope := observe.Scope{Entity: s.name, Operation: "fetch"}

	if !s.cache.ShouldFetch(CacheKey, force) {
		if cached, ok := s.cache.Get(ctx, CacheKey); ok {
			s.commitItems(cached, func() { s.lastErr = nil })
			s.metrics.RecordFetch(ctx, scope, observe.SourceCache)
			return nil
		}
	}

	_, err, shared := s.group.Do("fetch", func() (any, error) {
		return nil, s.load(ctx)
	})
	if !shared {
		s.metrics.RecordFetch(ctx, scope, observe.SourceNetwork)
	}
	return err
}

func (s *Store[T]) load(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	items, err := s.fetch(ctx)
	if err != nil {
		fetchErr := &Error{
			Message:    api.Message(err),
			StatusCode: api.StatusCode(err),
			Timestamp:  s.now(),
		}
		s.mu.Lock()
		s.loading = false
		s.lastErr = fetchErr
		s.mu.Unlock()
		s.logger.Warn(ctx, "fetch failed", observe.F("error", err))
		return fmt.Errorf("store %s: fetch: %w", s.name, err)
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	sorted := s.sorted(items)
	s.commitItems(sorted, func() {
		s.loading = false
		s.lastErr = nil
	})
	s.writeCache(ctx, sorted)
	s.logger.Debug(ctx, "fetched", observe.F("count", len(sorted)))
	return nil
}

// FetchFresh reads the collection from the network without touching state.
func (s *Store[T]) FetchFresh(ctx context.Context) ([]T, error) {
	items, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordFetch(ctx, observe.Scope{Entity: s.name, Operation: "reconcile"}, observe.SourceNetwork)
	return items, nil
}

// Replace swaps the whole collection, sorts it and refreshes the cache.
// The loading flag is left alone.
func (s *Store[T]) Replace(ctx context.Context, items []T) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	sorted := s.sorted(items)
	s.commitItems(sorted, nil)
	s.writeCache(ctx, sorted)
}

// Mutate replaces the item with the given id by fn's result. The collection
// is copied, never modified in place. It returns the item as it was before.
func (s *Store[T]) Mutate(ctx context.Context, id string, fn func(T) (T, error)) (T, error) {
	var zero T

	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return zero, fmt.Errorf("%w: %s %q", ErrNotFound, s.name, id)
	}
	prev := s.items[idx]
	next, err := fn(prev)
	if err != nil {
		s.mu.Unlock()
		return zero, err
	}
	items := slices.Clone(s.items)
	items[idx] = next
	s.setItemsLocked(items)
	s.mu.Unlock()

	s.writeCache(ctx, items)
	return prev, nil
}

// Restore puts prev back in place of the item with the same id. If the item
// is no longer in the collection, Restore does nothing and returns false.
func (s *Store[T]) Restore(ctx context.Context, prev T) bool {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	idx := s.indexLocked(prev.EntityID())
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	items := slices.Clone(s.items)
	items[idx] = prev
	s.setItemsLocked(items)
	s.mu.Unlock()

	s.writeCache(ctx, items)
	return true
}

// Items returns a copy of the collection.
func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// FilteredItems returns a copy of the filtered view.
func (s *Store[T]) FilteredItems() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.filtered)
}

// Filters returns a copy of the filter state.
func (s *Store[T]) Filters() Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters.clone()
}

// SetFilters merges partial into the filter state. A nil value removes the key.
func (s *Store[T]) SetFilters(partial Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.filters.clone()
	for k, v := range partial {
		if v == nil {
			delete(next, k)
			continue
		}
		next[k] = v
	}
	s.filters = next
	s.filtered = s.apply(s.items, next)
}

// FilterItems recomputes the filtered view from the current items and
// filters without committing anything.
func (s *Store[T]) FilterItems() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apply(s.items, s.filters)
}

// GetItemByID returns the item with the given id.
func (s *Store[T]) GetItemByID(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.items[idx], true
	}
	var zero T
	return zero, false
}

// Loading reports whether a network fetch is in progress.
func (s *Store[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LastError returns the last fetch failure, or nil after a successful fetch.
func (s *Store[T]) LastError() *Error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastErr == nil {
		return nil
	}
	e := *s.lastErr
	return &e
}

// Reset clears items, filters, the last error and the cache entry.
func (s *Store[T]) Reset(ctx context.Context) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	s.items = nil
	s.filtered = nil
	s.filters = Filters{}
	s.lastErr = nil
	s.mu.Unlock()

	s.cache.Invalidate(ctx, CacheKey)
}

// commitItems sets items and recomputes the view; extra runs under the same lock.
func (s *Store[T]) commitItems(items []T, extra func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setItemsLocked(items)
	if extra != nil {
		extra()
	}
}

func (s *Store[T]) setItemsLocked(items []T) {
	s.items = items
	s.filtered = s.apply(items, s.filters)
}

func (s *Store[T]) writeCache(ctx context.Context, items []T) {
	if err := s.cache.Set(ctx, CacheKey, items); err != nil {
		s.logger.Warn(ctx, "cache write failed", observe.F("error", err))
	}
}

func (s *Store[T]) sorted(items []T) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, s.sortFn)
	return out
}

// apply is the view's defining function: filter(sort(items), filters).
func (s *Store[T]) apply(items []T, filters Filters) []T {
	sorted := s.sorted(items)
	query := filters.Search()
	out := make([]T, 0, len(sorted))
	for _, item := range sorted {
		if s.filterFn != nil && !s.filterFn(item, filters) {
			continue
		}
		if !matchesSearch(item, query, s.search) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func (s *Store[T]) indexLocked(id string) int {
	return slices.IndexFunc(s.items, func(item T) bool { return item.EntityID() == id })
}
