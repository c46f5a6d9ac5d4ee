// Package domain defines the server-owned entities mirrored by the sync
// runtime and the wording used when their boolean flags change.
//
// Entities are plain values. Flag changes go through WithFlag, which returns
// a modified copy, so a collection holding the original is never mutated.
package domain
