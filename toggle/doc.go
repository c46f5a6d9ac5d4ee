// Package toggle applies boolean flag changes optimistically and sends them
// to the backend in the background.
//
// For each entity id a Coordinator keeps at most one live operation. Submit
// mutates the target collection immediately (copy-on-write) and returns a
// Pending handle. The request is held back for a settle delay; a second
// Submit for the same id replaces the first, which then exits without sending
// anything, rolling back or notifying. Inside the debounce window the first is
// cancelled at once; after it, the first finds at its settle gate that it was
// replaced. Once a
// request is in flight the id is marked loading and further toggles for it
// are accepted as no-ops until the response arrives.
//
// A successful response schedules a background reconcile and emits a success
// notification. A failed response restores the entity as it was before the
// first of any superseded operations, and emits an error notification.
//
// Lock discipline: a per-id lock orders mutations of one entity; the
// coordinator lock guards only the loading and operation maps. Neither is
// held across the settle delay or a network call.
package toggle
