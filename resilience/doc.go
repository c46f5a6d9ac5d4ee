// Package resilience provides the guards the sync runtime puts around
// backend traffic and background work.
//
//   - Cooldown: a running flag plus minimum spacing between runs, used to
//     rate-limit background reconciliation. Acquire is a single check-and-set
//     so callers can claim the slot before they start waiting.
//
//   - Breaker: a circuit breaker in front of the backend so that toggles fail
//     fast (and roll back) while the server is unreachable.
//
//   - Retry: bounded retries with backoff for idempotent reads.
//
// Usage:
//
//	gate := resilience.NewCooldown(2 * time.Second)
//	if !gate.Acquire() {
//	    return // busy or too soon
//	}
//	defer gate.Release()
package resilience
