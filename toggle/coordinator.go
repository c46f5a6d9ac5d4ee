package toggle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/5-logic/the-sync-frontend-sub001/api"
	"github.com/5-logic/the-sync-frontend-sub001/domain"
	"github.com/5-logic/the-sync-frontend-sub001/notify"
	"github.com/5-logic/the-sync-frontend-sub001/observe"
	"github.com/5-logic/the-sync-frontend-sub001/reconcile"
)

// Default timings. They are separate settings that happen to share a value.
const (
	DefaultDebounceWindow = 300 * time.Millisecond
	DefaultSettleDelay    = 300 * time.Millisecond
)

// Target is the collection a Coordinator mutates. *store.Store satisfies it.
type Target[T any] interface {
	Name() string
	GetItemByID(id string) (T, bool)
	Mutate(ctx context.Context, id string, fn func(T) (T, error)) (T, error)
	Restore(ctx context.Context, prev T) bool
}

// SendFunc delivers one flag change to the backend.
type SendFunc func(ctx context.Context, id, field string, value bool) error

// Coordinator sequences toggles per entity id.
type Coordinator[T domain.Flaggable[T]] struct {
	target     Target[T]
	send       SendFunc
	debounce   time.Duration
	settle     time.Duration
	notifier   notify.Notifier
	reconciler reconcile.Scheduler
	logger     observe.Logger
	metrics    observe.Metrics
	wording    domain.Wording
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ids    idLocks

	mu      sync.Mutex
	loading map[string]struct{}
	ops     map[string]*operation[T]
	closed  bool
}

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	debounce   time.Duration
	settle     time.Duration
	notifier   notify.Notifier
	reconciler reconcile.Scheduler
	logger     observe.Logger
	metrics    observe.Metrics
	wording    *domain.Wording
	now        func() time.Time
}

// WithDebounceWindow sets how young a pending operation must be for a new
// toggle to supersede it.
func WithDebounceWindow(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// WithSettleDelay sets how long a request waits before it is sent.
func WithSettleDelay(d time.Duration) Option {
	return func(o *options) { o.settle = d }
}

// WithNotifier sets where outcome notifications go.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithReconciler sets the scheduler run after each committed toggle.
func WithReconciler(r reconcile.Scheduler) Option {
	return func(o *options) { o.reconciler = r }
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records each toggle's outcome.
func WithMetrics(m observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithWording overrides the notification wording derived from the target name.
func WithWording(w domain.Wording) Option {
	return func(o *options) { o.wording = &w }
}

// WithClock overrides time.Now for operation timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a Coordinator that mutates target and delivers changes with send.
func New[T domain.Flaggable[T]](target Target[T], send SendFunc, opts ...Option) *Coordinator[T] {
	o := options{
		debounce: DefaultDebounceWindow,
		settle:   DefaultSettleDelay,
		notifier: notify.Nop{},
		logger:   observe.NopLogger(),
		metrics:  observe.NopMetrics(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	wording := domain.WordingFor(target.Name())
	if o.wording != nil {
		wording = *o.wording
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator[T]{
		target:     target,
		send:       send,
		debounce:   o.debounce,
		settle:     o.settle,
		notifier:   o.notifier,
		reconciler: o.reconciler,
		logger:     o.logger.WithScope(observe.Scope{Entity: target.Name(), Operation: "toggle"}),
		metrics:    o.metrics,
		wording:    wording,
		now:        o.now,
		ctx:        ctx,
		cancel:     cancel,
		loading:    make(map[string]struct{}),
		ops:        make(map[string]*operation[T]),
	}
}

// Toggle sets field on entity id to value and waits for the outcome. It
// reports false only when the change was rejected or failed and was rolled
// back. If ctx ends first, Toggle returns true and the operation carries on.
func (c *Coordinator[T]) Toggle(ctx context.Context, id, field string, value bool) bool {
	p, err := c.Submit(ctx, id, field, value)
	if err != nil {
		c.logger.Warn(ctx, "toggle rejected",
			observe.F("entity_id", id), observe.F("field", field), observe.F("error", err))
		return false
	}
	select {
	case <-p.Done():
		return p.Wait()
	case <-ctx.Done():
		return true
	}
}

// Submit applies the change to the target immediately and starts the
// background request. A *ValidationError means nothing changed.
func (c *Coordinator[T]) Submit(ctx context.Context, id, field string, value bool) (*Pending, error) {
	scope := observe.Scope{Entity: c.target.Name(), Operation: "toggle", EntityID: id, Field: field}

	current, ok := c.target.GetItemByID(id)
	if !ok {
		c.metrics.RecordToggle(ctx, scope, observe.OutcomeRejected)
		return nil, &ValidationError{EntityID: id, Field: field, Err: ErrUnknownEntity}
	}
	if _, err := current.Flag(field); err != nil {
		c.metrics.RecordToggle(ctx, scope, observe.OutcomeRejected)
		return nil, &ValidationError{EntityID: id, Field: field, Err: err}
	}

	unlock := c.ids.lock(id)
	defer unlock()

	now := c.now()
	ignored := Operation{EntityID: id, Field: field, PendingValue: value, RequestedAt: now}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if _, busy := c.loading[id]; busy {
		c.mu.Unlock()
		c.metrics.RecordToggle(ctx, scope, observe.OutcomeIgnored)
		c.logger.Debug(ctx, "toggle ignored, request in flight", observe.F("entity_id", id))
		return acceptedPending(ignored), nil
	}
	// A pending operation is always replaced. Within the debounce window it
	// is cancelled now; otherwise it notices at its settle gate that it is
	// no longer registered.
	prev, hasPrev := c.ops[id]
	if hasPrev && now.Sub(prev.RequestedAt) < c.debounce {
		prev.cancel()
	}

	opCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	op := &operation[T]{
		Operation: Operation{
			ID:           ulid.Make().String(),
			EntityID:     id,
			Field:        field,
			PendingValue: value,
			RequestedAt:  now,
		},
		ctx:    opCtx,
		cancel: cancel,
		stop:   context.AfterFunc(c.ctx, cancel),
	}
	op.pending = newPending(op.Operation)
	c.ops[id] = op
	c.wg.Add(1)
	c.mu.Unlock()

	before, err := c.target.Mutate(ctx, id, func(item T) (T, error) {
		return item.WithFlag(field, value)
	})
	if err != nil {
		c.mu.Lock()
		if c.ops[id] == op {
			delete(c.ops, id)
		}
		c.mu.Unlock()
		op.stop()
		cancel()
		c.wg.Done()
		if hasPrev {
			// The superseded operation exits without rolling back.
			c.target.Restore(ctx, prev.snapshot)
		}
		op.pending.resolve(false)
		c.metrics.RecordToggle(ctx, scope, observe.OutcomeRejected)
		return nil, &ValidationError{EntityID: id, Field: field, Err: err}
	}
	op.snapshot = before
	if hasPrev {
		op.snapshot = prev.snapshot
	}

	go c.run(op, scope)
	return op.pending, nil
}

// run waits out the settle delay, then sends the request if op still owns its id.
func (c *Coordinator[T]) run(op *operation[T], scope observe.Scope) {
	defer c.wg.Done()
	defer op.stop()
	defer op.cancel()

	ctx := op.ctx
	timer := time.NewTimer(c.settle)
	select {
	case <-ctx.Done():
		timer.Stop()
		c.release(op)
		c.superseded(op, scope)
		return
	case <-timer.C:
	}

	if err := c.dispatch(op); err != nil {
		c.release(op)
		c.superseded(op, scope)
		return
	}

	err := c.send(ctx, op.EntityID, op.Field, op.PendingValue)
	if err == nil {
		c.commit(op, scope)
		return
	}
	c.fail(op, scope, err)
}

// dispatch claims the loading flag for op, atomically with checking that op
// is still the registered, uncancelled operation for its id.
func (c *Coordinator[T]) dispatch(op *operation[T]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if op.ctx.Err() != nil || c.ops[op.EntityID] != op {
		return ErrStaleOperation
	}
	c.loading[op.EntityID] = struct{}{}
	return nil
}

// release clears op's loading flag and registration.
func (c *Coordinator[T]) release(op *operation[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ops[op.EntityID] == op {
		delete(c.ops, op.EntityID)
		delete(c.loading, op.EntityID)
	}
}

func (c *Coordinator[T]) commit(op *operation[T], scope observe.Scope) {
	c.release(op)

	// The reconcile context only carries values; its lifetime is the reconciler's.
	ctx := context.WithoutCancel(op.ctx)
	if c.reconciler != nil {
		c.reconciler.Schedule(ctx)
	}
	title, body := c.wording.Success(op.snapshot.DisplayName(), op.Field, op.PendingValue)
	c.notifier.Success(title, body)

	c.metrics.RecordToggle(ctx, scope, observe.OutcomeCommitted)
	c.logger.Debug(ctx, "toggle committed", observe.F("entity_id", op.EntityID), observe.F("op", op.ID))
	op.pending.resolve(true)
}

func (c *Coordinator[T]) fail(op *operation[T], scope observe.Scope, err error) {
	ctx := context.WithoutCancel(op.ctx)

	if op.ctx.Err() != nil {
		c.release(op)
		c.superseded(op, scope)
		return
	}

	unlock := c.ids.lock(op.EntityID)
	restored := c.target.Restore(ctx, op.snapshot)
	c.release(op)
	unlock()

	title, body := c.wording.Failure(op.Field, op.PendingValue, errors.New(api.Message(err)))
	c.notifier.Error(title, body)

	c.metrics.RecordToggle(ctx, scope, observe.OutcomeRolledBack)
	c.logger.Warn(ctx, "toggle rolled back",
		observe.F("entity_id", op.EntityID),
		observe.F("op", op.ID),
		observe.F("restored", restored),
		observe.F("error", err))
	op.pending.resolve(false)
}

func (c *Coordinator[T]) superseded(op *operation[T], scope observe.Scope) {
	ctx := context.WithoutCancel(op.ctx)
	c.metrics.RecordToggle(ctx, scope, observe.OutcomeSuperseded)
	c.logger.Debug(ctx, "toggle superseded", observe.F("entity_id", op.EntityID), observe.F("op", op.ID))
	op.pending.resolve(true)
}

// Loading reports whether a request for id is in flight.
func (c *Coordinator[T]) Loading(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.loading[id]
	return ok
}

// Pending returns the live operation for id, if any.
func (c *Coordinator[T]) Pending(id string) (Operation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	op, ok := c.ops[id]
	if !ok {
		return Operation{}, false
	}
	return op.Operation, true
}

// Wait blocks until every submitted operation has resolved.
func (c *Coordinator[T]) Wait() {
	c.wg.Wait()
}

// Close cancels all live operations without rolling them back and waits for
// their goroutines. Submit fails with ErrClosed afterwards.
func (c *Coordinator[T]) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}
