package observe

import (
	"context"
	"time"
)

// RequestFunc is the signature of a backend request wrapped by Middleware.
type RequestFunc func(ctx context.Context) error

// Middleware wraps backend requests with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: the span context is passed to the wrapped request.
//   - Errors: errors from the wrapped request are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewTracer(nil)
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NopMiddleware returns middleware that only runs the request.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// Metrics returns the metrics sink used by the middleware.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// Logger returns the logger used by the middleware.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Do runs fn inside a span for scope and records its outcome.
func (m *Middleware) Do(ctx context.Context, scope Scope, fn RequestFunc) error {
	ctx, span := m.tracer.StartSpan(ctx, scope)
	start := time.Now()

	err := fn(ctx)

	duration := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordRequest(ctx, scope, duration, err)

	logger := m.logger.WithScope(scope)
	fields := []Field{F("duration_ms", float64(duration.Milliseconds()))}
	if err != nil {
		fields = append(fields, F("error", err))
		logger.Warn(ctx, "backend request failed", fields...)
	} else {
		logger.Debug(ctx, "backend request completed", fields...)
	}

	return err
}
