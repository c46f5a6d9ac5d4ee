package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Manager is a registry of named caches. It is safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	caches map[string]Namespace
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{caches: make(map[string]Namespace)}
}

// Register adds ns under its name.
func (m *Manager) Register(ns Namespace) error {
	if ns == nil {
		return ErrNilCache
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	name := ns.Name()
	if _, ok := m.caches[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	m.caches[name] = ns
	return nil
}

// Lookup returns the cache registered under name.
func (m *Manager) Lookup(name string) (Namespace, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns, ok := m.caches[name]
	return ns, ok
}

// Clear empties the named cache.
func (m *Manager) Clear(ctx context.Context, name string) error {
	ns, ok := m.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownName, name)
	}
	ns.Clear(ctx)
	return nil
}

// Stats returns the named cache's stats.
func (m *Manager) Stats(name string) (Stats, error) {
	ns, ok := m.Lookup(name)
	if !ok {
		return Stats{}, fmt.Errorf("%w: %s", ErrUnknownName, name)
	}
	return ns.Stats(), nil
}

// ClearAll empties every registered cache.
func (m *Manager) ClearAll(ctx context.Context) {
	for _, name := range m.Names() {
		_ = m.Clear(ctx, name)
	}
}

// Names returns the registered names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Init creates a cache and registers it with m in one step.
func Init[T any](ctx context.Context, m *Manager, name string, config Config, opts ...Option) (*Cache[T], error) {
	c, err := New[T](ctx, name, config, opts...)
	if err != nil {
		return nil, err
	}
	if err := m.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}
