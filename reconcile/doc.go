// Package reconcile runs the best-effort background refresh that follows a
// committed toggle.
//
// A Reconciler owns one target collection and one resilience.Cooldown. The
// gate is claimed synchronously in Schedule, before the delay starts, so two
// requests arriving close together can never both pass it. The refresh
// replaces the collection wholesale; failures are logged at debug level and
// otherwise invisible, leaving the optimistic state in place.
package reconcile
