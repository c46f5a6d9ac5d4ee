// Package cache provides the named, TTL-bounded caches the entity stores
// read through.
//
// Each Cache is owned by one entity-type name and holds typed entries that
// expire lazily on read and are evicted oldest-inserted-first when the cache
// grows past its size bound. When persistence is enabled every write is
// mirrored synchronously to a kv.Store and the cache rehydrates from it on
// construction, dropping entries that have expired or no longer decode.
// Persistence failures are logged and otherwise ignored: the in-memory
// state is authoritative.
//
// A Manager groups caches by name for mirror-wide Clear and Stats.
package cache
