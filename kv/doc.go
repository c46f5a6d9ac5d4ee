// Package kv provides the durable key-value stores the cache mirrors its
// entries into: an in-memory store for tests and ephemeral sessions, and a
// SQLite-backed store that survives restarts.
package kv
