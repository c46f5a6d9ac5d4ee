package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/5-logic/the-sync-frontend-sub001/domain"
	"github.com/5-logic/the-sync-frontend-sub001/observe"
	"github.com/5-logic/the-sync-frontend-sub001/resilience"
	"github.com/5-logic/the-sync-frontend-sub001/store"
)

// DefaultDelay is how long a scheduled refresh waits before fetching.
const DefaultDelay = 500 * time.Millisecond

// Target is a collection that can be refreshed from the server.
type Target interface {
	Name() string
	// Refresh fetches server state and replaces local state with it. It
	// must leave local state untouched when the fetch fails.
	Refresh(ctx context.Context) error
}

// Scheduler is the part of a Reconciler the toggle coordinator uses.
type Scheduler interface {
	Schedule(ctx context.Context) bool
}

// Reconciler schedules gated background refreshes of one Target.
type Reconciler struct {
	target  Target
	gate    *resilience.Cooldown
	delay   time.Duration
	logger  observe.Logger
	metrics observe.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithDelay sets the wait between scheduling and fetching.
func WithDelay(d time.Duration) Option {
	return func(r *Reconciler) { r.delay = d }
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithMetrics records each request's outcome.
func WithMetrics(m observe.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// New creates a Reconciler for target. A nil gate uses a fresh Cooldown
// with the default period.
func New(target Target, gate *resilience.Cooldown, opts ...Option) *Reconciler {
	if gate == nil {
		gate = resilience.NewCooldown(resilience.DefaultCooldown)
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Reconciler{
		target:  target,
		gate:    gate,
		delay:   DefaultDelay,
		logger:  observe.NopLogger(),
		metrics: observe.NopMetrics(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithScope(r.scope())
	return r
}

// Schedule requests a refresh. It reports false, and does nothing, when a
// refresh is already running, the cooldown has not elapsed, or the
// Reconciler is closed. The refresh runs on its own goroutine, detached
// from ctx's cancellation.
func (r *Reconciler) Schedule(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if !r.gate.Acquire() {
		r.metrics.RecordReconcile(ctx, r.scope(), observe.OutcomeDropped)
		r.logger.Debug(ctx, "reconcile dropped")
		return false
	}

	r.wg.Add(1)
	go r.run()
	return true
}

func (r *Reconciler) run() {
	defer r.wg.Done()
	defer r.gate.Release()

	timer := time.NewTimer(r.delay)
	select {
	case <-r.ctx.Done():
		timer.Stop()
		return
	case <-timer.C:
	}

	ctx := r.ctx
	if err := r.target.Refresh(ctx); err != nil {
		r.metrics.RecordReconcile(ctx, r.scope(), observe.OutcomeFailed)
		r.logger.Debug(ctx, "reconcile failed", observe.F("error", err))
		return
	}
	r.metrics.RecordReconcile(ctx, r.scope(), observe.OutcomeApplied)
	r.logger.Debug(ctx, "reconcile applied")
}

// Gate returns the reconciler's cooldown gate.
func (r *Reconciler) Gate() *resilience.Cooldown {
	return r.gate
}

// Wait blocks until every scheduled refresh has finished.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// Close cancels pending refreshes and waits for them to exit. Further
// Schedule calls return false.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

func (r *Reconciler) scope() observe.Scope {
	return observe.Scope{Entity: r.target.Name(), Operation: "reconcile"}
}

// storeTarget refreshes a store by fetching fresh and replacing wholesale.
type storeTarget[T domain.Entity] struct {
	store *store.Store[T]
}

// ForStore adapts s to a Target.
func ForStore[T domain.Entity](s *store.Store[T]) Target {
	return storeTarget[T]{store: s}
}

func (t storeTarget[T]) Name() string {
	return t.store.Name()
}

func (t storeTarget[T]) Refresh(ctx context.Context) error {
	items, err := t.store.FetchFresh(ctx)
	if err != nil {
		return err
	}
	t.store.Replace(ctx, items)
	return nil
}

var _ Scheduler = (*Reconciler)(nil)
