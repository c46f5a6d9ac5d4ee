package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Toggle outcomes recorded by RecordToggle.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeSuperseded = "superseded"
	OutcomeIgnored    = "ignored"
	OutcomeRejected   = "rejected"
)

// Reconcile outcomes recorded by RecordReconcile.
const (
	OutcomeApplied = "applied"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// Fetch sources recorded by RecordFetch.
const (
	SourceCache   = "cache"
	SourceNetwork = "network"
)

// Metrics records sync runtime metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest records one network request with its duration and error status.
	RecordRequest(ctx context.Context, scope Scope, duration time.Duration, err error)

	// RecordToggle records how a toggle operation ended.
	RecordToggle(ctx context.Context, scope Scope, outcome string)

	// RecordReconcile records how a reconciliation request ended.
	RecordReconcile(ctx context.Context, scope Scope, outcome string)

	// RecordFetch records where a fetchItems call got its data from.
	RecordFetch(ctx context.Context, scope Scope, source string)
}

type metricsImpl struct {
	requestTotal    metric.Int64Counter
	requestErrors   metric.Int64Counter
	requestDuration metric.Float64Histogram
	toggles         metric.Int64Counter
	reconciles      metric.Int64Counter
	fetches         metric.Int64Counter
}

// NewMetrics creates the runtime's instruments on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.requestTotal, err = meter.Int64Counter(
		"sync.request.total",
		metric.WithDescription("Total number of backend requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	if m.requestErrors, err = meter.Int64Counter(
		"sync.request.errors",
		metric.WithDescription("Total number of failed backend requests"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	if m.requestDuration, err = meter.Float64Histogram(
		"sync.request.duration_ms",
		metric.WithDescription("Backend request duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.toggles, err = meter.Int64Counter(
		"sync.toggle.total",
		metric.WithDescription("Toggle operations by outcome"),
		metric.WithUnit("{toggle}"),
	); err != nil {
		return nil, err
	}

	if m.reconciles, err = meter.Int64Counter(
		"sync.reconcile.total",
		metric.WithDescription("Reconciliation requests by outcome"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, err
	}

	if m.fetches, err = meter.Int64Counter(
		"sync.fetch.total",
		metric.WithDescription("Collection fetches by source"),
		metric.WithUnit("{fetch}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordRequest(ctx context.Context, scope Scope, duration time.Duration, err error) {
	opt := metric.WithAttributes(scopeMetricAttrs(scope)...)

	m.requestTotal.Add(ctx, 1, opt)
	if err != nil {
		m.requestErrors.Add(ctx, 1, opt)
	}
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordToggle(ctx context.Context, scope Scope, outcome string) {
	attrs := append(scopeMetricAttrs(scope), attribute.String("sync.outcome", outcome))
	m.toggles.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordReconcile(ctx context.Context, scope Scope, outcome string) {
	attrs := append(scopeMetricAttrs(scope), attribute.String("sync.outcome", outcome))
	m.reconciles.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordFetch(ctx context.Context, scope Scope, source string) {
	attrs := append(scopeMetricAttrs(scope), attribute.String("sync.source", source))
	m.fetches.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// scopeMetricAttrs keeps metric cardinality bounded: entity ids are left out.
func scopeMetricAttrs(scope Scope) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("sync.entity", scope.Entity)}
	if scope.Operation != "" {
		attrs = append(attrs, attribute.String("sync.operation", scope.Operation))
	}
	if scope.Field != "" {
		attrs = append(attrs, attribute.String("sync.field", scope.Field))
	}
	return attrs
}

// NopMetrics returns a Metrics implementation that does nothing.
func NopMetrics() Metrics {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) RecordRequest(context.Context, Scope, time.Duration, error) {}
func (nopMetrics) RecordToggle(context.Context, Scope, string)                {}
func (nopMetrics) RecordReconcile(context.Context, Scope, string)             {}
func (nopMetrics) RecordFetch(context.Context, Scope, string)                 {}
