package cache

import (
	"fmt"
	"strings"
)

// Keyer maps cache names and keys onto keys in the durable store.
//
// Contract:
// - Determinism: same inputs must produce same key.
// - Isolation: keys of different names must never collide, and no entry key
//   may collide with the name's index key.
type Keyer interface {
	// EntryKey returns the storage key for one entry.
	EntryKey(name, key string) string

	// IndexKey returns the storage key holding the name's key list.
	IndexKey(name string) string
}

// DefaultKeyer namespaces keys as cache:<name>:<key>, with the index at cache:<name>.
type DefaultKeyer struct {
	Prefix string
}

// NewDefaultKeyer creates a keyer with the "cache" prefix.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{Prefix: "cache"}
}

func (k *DefaultKeyer) EntryKey(name, key string) string {
	return fmt.Sprintf("%s:%s:%s", k.prefix(), escape(name), key)
}

func (k *DefaultKeyer) IndexKey(name string) string {
	return fmt.Sprintf("%s:%s", k.prefix(), escape(name))
}

func (k *DefaultKeyer) prefix() string {
	if k.Prefix == "" {
		return "cache"
	}
	return k.Prefix
}

// escape keeps a name containing ':' from spilling into the key segment.
func escape(name string) string {
	return strings.ReplaceAll(name, ":", "%3A")
}

var _ Keyer = (*DefaultKeyer)(nil)
