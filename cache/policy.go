package cache

import "time"

// Default cache settings.
const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 100
)

// Config configures one named cache.
type Config struct {
	// TTL is how long an entry stays live after it is written.
	// If zero or negative, DefaultTTL is used.
	TTL time.Duration

	// MaxSize bounds the number of entries; the oldest-inserted entry is
	// evicted first. If zero, DefaultMaxSize is used; negative means unbounded.
	MaxSize int

	// EnablePersistence mirrors entries to the configured kv.Store.
	EnablePersistence bool
}

// DefaultConfig returns the default cache configuration.
// TTL: 5 minutes, MaxSize: 100, persistence off.
func DefaultConfig() Config {
	return Config{
		TTL:     DefaultTTL,
		MaxSize: DefaultMaxSize,
	}
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxSize == 0 {
		c.MaxSize = DefaultMaxSize
	}
	return c
}

// bounded reports whether size eviction applies.
func (c Config) bounded() bool {
	return c.MaxSize > 0
}
