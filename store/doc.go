// Package store provides the typed entity collections the UI reads from.
//
// A Store holds the fetched items of one entity type together with the
// derived filtered view. The view is recomputed under the same lock as every
// commit to items or filters, so readers never see it out of step. Reads go
// through a cache.Cache first; concurrent network fetches are coalesced.
//
// Fetch failures do not panic or propagate past the store's own state:
// callers inspect LastError. Mutate, Restore and Replace are the hooks used
// by the toggle coordinator and the background reconciler; they never touch
// the loading flag.
package store
