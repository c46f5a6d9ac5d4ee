package health

import (
	"context"
	"fmt"
	"time"

	"github.com/5-logic/the-sync-frontend-sub001/resilience"
	"github.com/5-logic/the-sync-frontend-sub001/store"
)

// StoreProbe is the part of a store a health check reads. Every
// *store.Store[T] satisfies it.
type StoreProbe interface {
	Name() string
	Loading() bool
	LastError() *store.Error
}

// StoreChecker reports a store as degraded while its last fetch failed.
// The store still serves whatever it held before, so it is never unhealthy.
type StoreChecker struct {
	store StoreProbe
}

// NewStoreChecker creates a checker for s.
func NewStoreChecker(s StoreProbe) *StoreChecker {
	return &StoreChecker{store: s}
}

// Name returns the store's entity-type name.
func (c *StoreChecker) Name() string {
	return c.store.Name()
}

// Check performs the store health check.
func (c *StoreChecker) Check(ctx context.Context) Result {
	details := map[string]any{
		"loading": c.store.Loading(),
	}
	lastErr := c.store.LastError()
	if lastErr == nil {
		return Healthy("last fetch succeeded").WithDetails(details)
	}

	details["error"] = lastErr.Message
	details["error_at"] = lastErr.Timestamp.UTC().Format(time.RFC3339)
	if lastErr.StatusCode != 0 {
		details["status_code"] = lastErr.StatusCode
	}
	return Degraded("last fetch failed: " + lastErr.Error()).WithDetails(details)
}

// BreakerChecker reports the API circuit breaker state.
type BreakerChecker struct {
	name    string
	breaker *resilience.Breaker
}

// NewBreakerChecker creates a checker named name for b.
func NewBreakerChecker(name string, b *resilience.Breaker) *BreakerChecker {
	return &BreakerChecker{name: name, breaker: b}
}

// Name returns the name of this checker.
func (c *BreakerChecker) Name() string {
	return c.name
}

// Check performs the breaker health check.
func (c *BreakerChecker) Check(ctx context.Context) Result {
	m := c.breaker.Metrics()
	details := map[string]any{
		"state":    m.State.String(),
		"failures": m.Failures,
	}
	if !m.LastFailure.IsZero() {
		details["last_failure"] = m.LastFailure.UTC().Format(time.RFC3339)
	}

	switch m.State {
	case resilience.StateOpen:
		return Unhealthy("circuit open", resilience.ErrCircuitOpen).WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("circuit probing").WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("circuit closed, %d recent failures", m.Failures)).WithDetails(details)
	}
}

// DefaultStallAfter is how long a reconcile run may hold its gate before
// GateChecker reports it as stalled.
const DefaultStallAfter = 30 * time.Second

// GateChecker reports a reconcile cooldown gate. Dropped refreshes are
// normal under bursts of edits; a run that holds the gate too long is not.
type GateChecker struct {
	name       string
	gate       *resilience.Cooldown
	stallAfter time.Duration
	now        func() time.Time
}

// NewGateChecker creates a checker named name for g. A non-positive
// stallAfter uses DefaultStallAfter.
func NewGateChecker(name string, g *resilience.Cooldown, stallAfter time.Duration) *GateChecker {
	if stallAfter <= 0 {
		stallAfter = DefaultStallAfter
	}
	return &GateChecker{name: name, gate: g, stallAfter: stallAfter, now: time.Now}
}

// Name returns the name of this checker.
func (c *GateChecker) Name() string {
	return c.name
}

// Check performs the gate health check.
func (c *GateChecker) Check(ctx context.Context) Result {
	st := c.gate.State()
	details := map[string]any{
		"running": st.Running,
		"period":  st.Period.String(),
		"dropped": st.Dropped,
	}
	if st.LastRunAt.IsZero() {
		return Healthy("no refresh yet").WithDetails(details)
	}
	details["last_run_at"] = st.LastRunAt.UTC().Format(time.RFC3339)

	if held := c.now().Sub(st.LastRunAt); st.Running && held > c.stallAfter {
		return Degraded(fmt.Sprintf("refresh running for %s", held.Round(time.Millisecond))).WithDetails(details)
	}
	return Healthy("refreshes flowing").WithDetails(details)
}
