package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/5-logic/the-sync-frontend-sub001/api"
	"github.com/5-logic/the-sync-frontend-sub001/cache"
	"github.com/5-logic/the-sync-frontend-sub001/config"
	"github.com/5-logic/the-sync-frontend-sub001/domain"
	"github.com/5-logic/the-sync-frontend-sub001/health"
	"github.com/5-logic/the-sync-frontend-sub001/kv"
	"github.com/5-logic/the-sync-frontend-sub001/notify"
	"github.com/5-logic/the-sync-frontend-sub001/observe"
	"github.com/5-logic/the-sync-frontend-sub001/reconcile"
	"github.com/5-logic/the-sync-frontend-sub001/resilience"
	"github.com/5-logic/the-sync-frontend-sub001/store"
	"github.com/5-logic/the-sync-frontend-sub001/toggle"
)

// Toggleable bundles a store with the coordinator and reconciler that
// apply flag toggles to it.
type Toggleable[T domain.Flaggable[T]] struct {
	Store       *store.Store[T]
	Coordinator *toggle.Coordinator[T]
	Reconciler  *reconcile.Reconciler
}

// Toggle forwards to the coordinator.
func (t *Toggleable[T]) Toggle(ctx context.Context, id, field string, value bool) bool {
	return t.Coordinator.Toggle(ctx, id, field, value)
}

func (t *Toggleable[T]) close() {
	t.Coordinator.Close()
	t.Reconciler.Close()
}

// Mirror is the local copy of every entity collection, wired to one
// backend client.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Lifecycle: Close stops pending toggles and refreshes and releases the
//   persistence store when the mirror opened it.
type Mirror struct {
	Lecturers  *Toggleable[domain.Lecturer]
	Theses     *Toggleable[domain.Thesis]
	Milestones *store.Store[domain.Milestone]
	Groups     *store.Store[domain.Group]

	client  *api.Client
	caches  *cache.Manager
	health  *health.Aggregator
	logger  observe.Logger
	closers []io.Closer
}

type options struct {
	logger     observe.Logger
	middleware *observe.Middleware
	notifier   notify.Notifier
	kv         kv.Store
	httpClient *http.Client
}

// Option configures a Mirror.
type Option func(*options)

// WithObserver takes the logger and request middleware from obs.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) {
		o.logger = obs.Logger()
		o.middleware = obs.Middleware()
	}
}

// WithLogger overrides the logger.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithNotifier sets where toggle outcomes are reported. The default logs them.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithKV supplies the persistence store instead of opening the configured
// SQLite file. The caller keeps ownership.
func WithKV(s kv.Store) Option {
	return func(o *options) { o.kv = s }
}

// WithHTTPClient sets the HTTP client used for backend requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// New builds a mirror from cfg. Persisted caches are rehydrated before it
// returns; nothing is fetched.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Mirror, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		logger:     observe.NopLogger(),
		middleware: observe.NopMiddleware(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.notifier == nil {
		o.notifier = notify.NewLog(o.logger)
	}
	metrics := o.middleware.Metrics()

	m := &Mirror{
		caches: cache.NewManager(),
		health: health.NewAggregator(),
		logger: o.logger,
	}

	if cfg.Cache.Persist && o.kv == nil {
		db, err := kv.OpenSQLite(ctx, cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("mirror: %w", err)
		}
		o.kv = db
		m.closers = append(m.closers, db)
	}

	client, err := newClient(cfg, o)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	m.client = client
	m.health.Register("api", health.NewBreakerChecker("api", client.Breaker()))

	b := builder{cfg: cfg, o: o, metrics: metrics, m: m}

	if m.Lecturers, err = buildToggleable(ctx, b, domain.Lecturers,
		store.WithFilter[domain.Lecturer](lecturerFilter),
		store.WithSearchFields[domain.Lecturer](lecturerSearch),
	); err != nil {
		_ = m.Close()
		return nil, err
	}
	if m.Theses, err = buildToggleable(ctx, b, domain.Theses,
		store.WithFilter[domain.Thesis](thesisFilter),
		store.WithSearchFields[domain.Thesis](thesisSearch),
	); err != nil {
		_ = m.Close()
		return nil, err
	}
	if m.Milestones, err = buildStore(ctx, b, domain.Milestones,
		store.WithFilter[domain.Milestone](milestoneFilter),
		store.WithSearchFields[domain.Milestone](milestoneSearch),
	); err != nil {
		_ = m.Close()
		return nil, err
	}
	if m.Groups, err = buildStore(ctx, b, domain.Groups,
		store.WithFilter[domain.Group](groupFilter),
		store.WithSearchFields[domain.Group](groupSearch),
	); err != nil {
		_ = m.Close()
		return nil, err
	}

	return m, nil
}

func newClient(cfg config.Config, o options) (*api.Client, error) {
	breakerCfg := cfg.BreakerConfig()
	breakerCfg.IsFailure = api.Transient
	breakerCfg.OnStateChange = func(from, to resilience.State) {
		o.logger.Warn(context.Background(), "circuit state changed",
			observe.F("from", from.String()), observe.F("to", to.String()))
	}
	retryCfg := cfg.RetryConfig()
	retryCfg.RetryIf = api.Transient

	clientOpts := []api.Option{
		api.WithBreaker(resilience.NewBreaker(breakerCfg)),
		api.WithRetry(resilience.NewRetry(retryCfg)),
		api.WithMiddleware(o.middleware),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(o.httpClient))
	}
	for k, v := range cfg.API.Headers {
		clientOpts = append(clientOpts, api.WithHeader(k, v))
	}
	client, err := api.NewClient(cfg.API.BaseURL, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}
	return client, nil
}

type builder struct {
	cfg     config.Config
	o       options
	metrics observe.Metrics
	m       *Mirror
}

func buildStore[T domain.Entity](ctx context.Context, b builder, name string, opts ...store.Option[T]) (*store.Store[T], error) {
	cacheOpts := []cache.Option{cache.WithLogger(b.o.logger), cache.WithKeyer(b.cfg.Keyer())}
	if b.o.kv != nil {
		cacheOpts = append(cacheOpts, cache.WithStore(b.o.kv))
	}
	c, err := cache.Init[[]T](ctx, b.m.caches, name, b.cfg.CacheConfig(), cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("mirror: %s cache: %w", name, err)
	}

	res := api.NewResource[T](b.m.client, name)
	opts = append(opts, store.WithLogger[T](b.o.logger), store.WithMetrics[T](b.metrics))
	s, err := store.New[T](name, res.FetchAll, c, opts...)
	if err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}
	b.m.health.Register(name, health.NewStoreChecker(s))
	return s, nil
}

func buildToggleable[T domain.Flaggable[T]](ctx context.Context, b builder, name string, opts ...store.Option[T]) (*Toggleable[T], error) {
	s, err := buildStore(ctx, b, name, opts...)
	if err != nil {
		return nil, err
	}

	gate := resilience.NewCooldown(b.cfg.Reconcile.Cooldown)
	r := reconcile.New(reconcile.ForStore(s), gate,
		reconcile.WithDelay(b.cfg.Reconcile.Delay),
		reconcile.WithLogger(b.o.logger),
		reconcile.WithMetrics(b.metrics),
	)
	b.m.health.Register(name+"-reconcile", health.NewGateChecker(name+"-reconcile", gate, b.cfg.Health.StallAfter))

	res := api.NewResource[T](b.m.client, name)
	coord := toggle.New[T](s, res.SetFlag,
		toggle.WithDebounceWindow(b.cfg.Toggle.Debounce),
		toggle.WithSettleDelay(b.cfg.Toggle.Settle),
		toggle.WithNotifier(b.o.notifier),
		toggle.WithReconciler(r),
		toggle.WithLogger(b.o.logger),
		toggle.WithMetrics(b.metrics),
	)
	return &Toggleable[T]{Store: s, Coordinator: coord, Reconciler: r}, nil
}

// FetchAll loads every collection concurrently. Every store is attempted;
// the first failure is returned and each store keeps its own LastError.
func (m *Mirror) FetchAll(ctx context.Context, force bool) error {
	var g errgroup.Group
	g.Go(func() error { return m.Lecturers.Store.FetchItems(ctx, force) })
	g.Go(func() error { return m.Theses.Store.FetchItems(ctx, force) })
	g.Go(func() error { return m.Milestones.FetchItems(ctx, force) })
	g.Go(func() error { return m.Groups.FetchItems(ctx, force) })
	return g.Wait()
}

// Wait blocks until every pending toggle and scheduled refresh has finished.
func (m *Mirror) Wait() {
	m.Lecturers.Coordinator.Wait()
	m.Theses.Coordinator.Wait()
	m.Lecturers.Reconciler.Wait()
	m.Theses.Reconciler.Wait()
}

// ClearCaches empties every entity cache, persisted entries included, and
// starts the backend over: reconcile cooldowns are lifted and the API
// breaker is closed, so the next fetch reaches the server.
func (m *Mirror) ClearCaches(ctx context.Context) {
	m.caches.ClearAll(ctx)
	m.Lecturers.Reconciler.Gate().Reset()
	m.Theses.Reconciler.Gate().Reset()
	m.client.Breaker().Reset()
}

// CacheStats returns the stats of every entity cache in name order.
func (m *Mirror) CacheStats() []cache.Stats {
	names := m.caches.Names()
	out := make([]cache.Stats, 0, len(names))
	for _, name := range names {
		if s, err := m.caches.Stats(name); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// Caches returns the cache registry.
func (m *Mirror) Caches() *cache.Manager {
	return m.caches
}

// Health returns the aggregator holding the mirror's checks.
func (m *Mirror) Health() *health.Aggregator {
	return m.health
}

// Client returns the backend client.
func (m *Mirror) Client() *api.Client {
	return m.client
}

// Close cancels pending toggles and refreshes without rolling anything
// back, then closes what the mirror opened.
func (m *Mirror) Close() error {
	if m.Lecturers != nil {
		m.Lecturers.close()
	}
	if m.Theses != nil {
		m.Theses.close()
	}

	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}
