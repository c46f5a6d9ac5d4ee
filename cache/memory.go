package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/5-logic/the-sync-frontend-sub001/kv"
	"github.com/5-logic/the-sync-frontend-sub001/observe"
)

// Cache is a named, typed, in-memory cache with TTL expiry, a size bound and
// optional persistence. Values are returned as stored; callers must treat
// them as immutable.
type Cache[T any] struct {
	name   string
	config Config
	store  kv.Store
	keyer  Keyer
	logger observe.Logger
	now    func() time.Time

	// pmu serialises writers so persisted state is written in the same
	// order it was applied in memory. Readers only take mu.
	pmu sync.Mutex

	mu        sync.Mutex
	entries   map[string]*list.Element // of *Entry[T]
	order     *list.List               // front is the oldest insertion
	hits      int64
	misses    int64
	evictions int64
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	store  kv.Store
	keyer  Keyer
	logger observe.Logger
	now    func() time.Time
}

// WithStore sets the durable store used when persistence is enabled.
func WithStore(s kv.Store) Option {
	return func(o *options) { o.store = s }
}

// WithKeyer overrides the storage key layout.
func WithKeyer(k Keyer) Option {
	return func(o *options) { o.keyer = k }
}

// WithLogger sets the logger for persistence warnings.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates the cache for name and, when persistence is enabled and a
// store is configured, rehydrates it.
func New[T any](ctx context.Context, name string, config Config, opts ...Option) (*Cache[T], error) {
	if err := ValidateKey(name); err != nil {
		return nil, fmt.Errorf("cache: invalid name %q: %w", name, err)
	}

	o := options{
		keyer:  NewDefaultKeyer(),
		logger: observe.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache[T]{
		name:    name,
		config:  config.withDefaults(),
		keyer:   o.keyer,
		logger:  o.logger.WithScope(observe.Scope{Entity: name, Operation: "cache"}),
		now:     o.now,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
	if c.config.EnablePersistence {
		c.store = o.store
	}

	if c.store != nil {
		c.rehydrate(ctx)
	}
	return c, nil
}

// Name returns the cache's entity-type name.
func (c *Cache[T]) Name() string {
	return c.name
}

// Config returns the effective configuration.
func (c *Cache[T]) Config() Config {
	return c.config
}

// Get returns the live value for key. Expired entries count as a miss and
// are purged.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T

	c.mu.Lock()
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		c.mu.Unlock()
		return zero, false
	}
	entry := el.Value.(*Entry[T])
	if !entry.Expired(c.now()) {
		c.hits++
		c.mu.Unlock()
		return entry.Data, true
	}
	c.misses++
	c.mu.Unlock()

	c.purge(ctx, key, entry)
	return zero, false
}

// Entry returns the live entry for key without affecting hit/miss counters.
func (c *Cache[T]) Entry(key string) (Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return Entry[T]{}, false
	}
	entry := el.Value.(*Entry[T])
	if entry.Expired(c.now()) {
		return Entry[T]{}, false
	}
	return *entry, true
}

// Set inserts or overwrites key. An overwrite counts as a fresh insertion for
// eviction order. Only an invalid key is reported; persistence failures are logged.
func (c *Cache[T]) Set(ctx context.Context, key string, value T) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	c.pmu.Lock()
	defer c.pmu.Unlock()

	now := c.now()
	entry := &Entry[T]{
		Key:        key,
		Data:       value,
		InsertedAt: now,
		ExpiresAt:  now.Add(c.config.TTL),
	}

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
	}
	c.entries[key] = c.order.PushBack(entry)
	evicted := c.evictLocked()
	index := c.indexLocked()
	c.mu.Unlock()

	if c.store != nil {
		for _, k := range evicted {
			c.removePersisted(ctx, k)
		}
		c.persist(ctx, entry)
		c.persistIndex(ctx, index)
	}
	return nil
}

// Invalidate removes key. Missing keys are ignored.
func (c *Cache[T]) Invalidate(ctx context.Context, key string) {
	c.pmu.Lock()
	defer c.pmu.Unlock()

	c.mu.Lock()
	el, ok := c.entries[key]
	if ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
	index := c.indexLocked()
	c.mu.Unlock()

	if ok && c.store != nil {
		c.removePersisted(ctx, key)
		c.persistIndex(ctx, index)
	}
}

// Clear removes every entry.
func (c *Cache[T]) Clear(ctx context.Context) {
	c.pmu.Lock()
	defer c.pmu.Unlock()

	c.mu.Lock()
	keys := c.indexLocked()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	for _, k := range keys {
		c.removePersisted(ctx, k)
	}
	if err := c.store.Remove(ctx, c.keyer.IndexKey(c.name)); err != nil {
		c.logger.Warn(ctx, "cache persistence remove failed", observe.F("error", err))
	}
}

// ShouldFetch reports whether the caller should go to the network: when
// forced, when key has no entry, or when its entry has expired.
func (c *Cache[T]) ShouldFetch(key string, force bool) bool {
	if force {
		return true
	}
	_, ok := c.Entry(key)
	return !ok
}

// Stats returns a snapshot of the cache. It does not purge expired entries.
func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Name:       c.name,
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
		Persistent: c.store != nil,
	}
	now := c.now()
	for el := c.order.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*Entry[T])
		if entry.Expired(now) {
			continue
		}
		if s.Count == 0 {
			s.Oldest = entry.InsertedAt
		}
		s.Newest = entry.InsertedAt
		s.Count++
	}
	return s
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// purge drops key if it still holds the given expired entry.
func (c *Cache[T]) purge(ctx context.Context, key string, expired *Entry[T]) {
	c.pmu.Lock()
	defer c.pmu.Unlock()

	c.mu.Lock()
	el, ok := c.entries[key]
	removed := ok && el.Value.(*Entry[T]) == expired
	if removed {
		c.order.Remove(el)
		delete(c.entries, key)
	}
	index := c.indexLocked()
	c.mu.Unlock()

	if removed && c.store != nil {
		c.removePersisted(ctx, key)
		c.persistIndex(ctx, index)
	}
}

// evictLocked trims the oldest insertions until the size bound holds.
func (c *Cache[T]) evictLocked() []string {
	if !c.config.bounded() {
		return nil
	}
	var evicted []string
	for c.order.Len() > c.config.MaxSize {
		front := c.order.Front()
		entry := front.Value.(*Entry[T])
		c.order.Remove(front)
		delete(c.entries, entry.Key)
		c.evictions++
		evicted = append(evicted, entry.Key)
	}
	return evicted
}

// indexLocked lists keys oldest insertion first.
func (c *Cache[T]) indexLocked() []string {
	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*Entry[T]).Key)
	}
	return keys
}

var _ Namespace = (*Cache[int])(nil)
