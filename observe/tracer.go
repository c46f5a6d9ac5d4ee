package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Scope identifies what a unit of telemetry is about: an entity collection,
// the operation performed on it, and optionally a single entity.
type Scope struct {
	Entity    string // Entity collection, e.g. "lecturers" (required)
	Operation string // fetch|toggle|reconcile
	EntityID  string // Target entity id (optional)
	Field     string // Toggled field (optional)
}

// SpanName returns the deterministic span name for this scope.
// Format: sync.<operation>.<entity> or sync.<entity>
func (s Scope) SpanName() string {
	if s.Operation != "" {
		return "sync." + s.Operation + "." + s.Entity
	}
	return "sync." + s.Entity
}

func (s Scope) attrs() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("sync.entity", s.Entity)}
	if s.Operation != "" {
		attrs = append(attrs, attribute.String("sync.operation", s.Operation))
	}
	if s.EntityID != "" {
		attrs = append(attrs, attribute.String("sync.entity_id", s.EntityID))
	}
	if s.Field != "" {
		attrs = append(attrs, attribute.String("sync.field", s.Field))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with scope-aware span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, scope Scope) (context.Context, trace.Span)
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer. A nil tracer yields a no-op Tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		t = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, scope Scope) (context.Context, trace.Span) {
	attrs := append(scope.attrs(), attribute.Bool("sync.error", false))
	return t.tracer.Start(ctx, scope.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("sync.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
