package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/5-logic/the-sync-frontend-sub001/observe"
)

// envelope is the persisted form of an Entry.
type envelope[T any] struct {
	Data       T         `json:"data"`
	InsertedAt time.Time `json:"insertedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func (c *Cache[T]) persist(ctx context.Context, entry *Entry[T]) {
	raw, err := json.Marshal(envelope[T]{
		Data:       entry.Data,
		InsertedAt: entry.InsertedAt,
		ExpiresAt:  entry.ExpiresAt,
	})
	if err != nil {
		c.logger.Warn(ctx, "cache entry not serialisable", observe.F("key", entry.Key), observe.F("error", err))
		return
	}
	if err := c.store.Set(ctx, c.keyer.EntryKey(c.name, entry.Key), raw); err != nil {
		c.logger.Warn(ctx, "cache persistence write failed", observe.F("key", entry.Key), observe.F("error", err))
	}
}

func (c *Cache[T]) persistIndex(ctx context.Context, keys []string) {
	raw, err := json.Marshal(keys)
	if err != nil {
		c.logger.Warn(ctx, "cache index not serialisable", observe.F("error", err))
		return
	}
	if err := c.store.Set(ctx, c.keyer.IndexKey(c.name), raw); err != nil {
		c.logger.Warn(ctx, "cache index write failed", observe.F("error", err))
	}
}

func (c *Cache[T]) removePersisted(ctx context.Context, key string) {
	if err := c.store.Remove(ctx, c.keyer.EntryKey(c.name, key)); err != nil {
		c.logger.Warn(ctx, "cache persistence remove failed", observe.F("key", key), observe.F("error", err))
	}
}

// load decodes one persisted entry.
func (c *Cache[T]) load(ctx context.Context, key string) (*Entry[T], bool, error) {
	raw, ok, err := c.store.Get(ctx, c.keyer.EntryKey(c.name, key))
	if err != nil || !ok {
		return nil, ok, err
	}
	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, key, err)
	}
	if env.ExpiresAt.IsZero() {
		return nil, true, fmt.Errorf("%w: %s: missing expiry", ErrCorruptEntry, key)
	}
	return &Entry[T]{
		Key:        key,
		Data:       env.Data,
		InsertedAt: env.InsertedAt,
		ExpiresAt:  env.ExpiresAt,
	}, true, nil
}

// rehydrate restores live entries listed in the persisted index. Expired and
// corrupt entries are removed from the store; the rewritten index reflects
// what was kept.
func (c *Cache[T]) rehydrate(ctx context.Context) {
	raw, ok, err := c.store.Get(ctx, c.keyer.IndexKey(c.name))
	if err != nil {
		c.logger.Warn(ctx, "cache index read failed", observe.F("error", err))
		return
	}
	if !ok {
		return
	}

	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		c.logger.Warn(ctx, "cache index corrupt, discarding",
			observe.F("error", fmt.Errorf("%w: index: %v", ErrCorruptEntry, err)))
		if err := c.store.Remove(ctx, c.keyer.IndexKey(c.name)); err != nil {
			c.logger.Warn(ctx, "cache persistence remove failed", observe.F("error", err))
		}
		return
	}

	c.pmu.Lock()
	defer c.pmu.Unlock()

	now := c.now()
	var dropped int
	c.mu.Lock()
	for _, key := range keys {
		if _, seen := c.entries[key]; seen {
			continue
		}
		entry, found, err := c.load(ctx, key)
		switch {
		case err != nil:
			c.logger.Warn(ctx, "cache entry dropped", observe.F("key", key), observe.F("error", err))
		case !found:
		case entry.Expired(now):
		default:
			c.entries[key] = c.order.PushBack(entry)
			continue
		}
		dropped++
		c.removePersisted(ctx, key)
	}
	evicted := c.evictLocked()
	index := c.indexLocked()
	c.mu.Unlock()

	for _, k := range evicted {
		c.removePersisted(ctx, k)
	}
	if dropped > 0 || len(evicted) > 0 {
		c.persistIndex(ctx, index)
	}
	c.logger.Debug(ctx, "cache rehydrated",
		observe.F("restored", len(index)),
		observe.F("dropped", dropped+len(evicted)))
}
