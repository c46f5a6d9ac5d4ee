package observe

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/5-logic/the-sync-frontend-sub001/observe/exporters"
)

type observer struct {
	tracer     trace.Tracer
	meter      metric.Meter
	logger     Logger
	middleware *Middleware

	// stops are run in reverse order by Shutdown.
	stops []func(context.Context) error
}

// NewObserver starts the providers cfg enables. Disabled signals get no-op
// implementations, so callers never check for nil.
func NewObserver(ctx context.Context, cfg Config) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &observer{
		tracer: tracenoop.NewTracerProvider().Tracer(cfg.ServiceName),
		meter:  noop.NewMeterProvider().Meter(cfg.ServiceName),
		logger: NopLogger(),
	}
	if cfg.Logging.Enabled {
		o.logger = NewLogger(cfg.Logging.Level)
	}

	if cfg.Tracing.Enabled || cfg.Metrics.Enabled {
		res, err := resource.New(ctx, resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		))
		if err != nil {
			return nil, fmt.Errorf("observe: resource: %w", err)
		}
		if err := o.start(ctx, cfg, res); err != nil {
			_ = o.Shutdown(ctx)
			return nil, err
		}
	}

	metrics, err := NewMetrics(o.meter)
	if err != nil {
		_ = o.Shutdown(ctx)
		return nil, fmt.Errorf("observe: instruments: %w", err)
	}
	o.middleware = NewMiddleware(NewTracer(o.tracer), metrics, o.logger)
	return o, nil
}

func (o *observer) start(ctx context.Context, cfg Config, res *resource.Resource) error {
	if cfg.Tracing.Enabled {
		exp, err := exporters.NewTracingExporter(ctx, cfg.Tracing.Exporter)
		if err != nil {
			return fmt.Errorf("observe: tracing: %w", err)
		}
		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler(cfg.Tracing.SamplePct)),
		}
		if exp != nil {
			opts = append(opts, sdktrace.WithBatcher(exp))
		}
		tp := sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(tp)
		o.tracer = tp.Tracer(cfg.ServiceName)
		o.stops = append(o.stops, tp.Shutdown)
	}

	if cfg.Metrics.Enabled {
		reader, err := exporters.NewMetricsReader(ctx, cfg.Metrics.Exporter)
		if err != nil {
			return fmt.Errorf("observe: metrics: %w", err)
		}
		opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
		if reader != nil {
			opts = append(opts, sdkmetric.WithReader(reader))
		}
		mp := sdkmetric.NewMeterProvider(opts...)
		otel.SetMeterProvider(mp)
		o.meter = mp.Meter(cfg.ServiceName)
		o.stops = append(o.stops, mp.Shutdown)
	}
	return nil
}

func sampler(pct float64) sdktrace.Sampler {
	switch {
	case pct >= MaxSamplePct:
		return sdktrace.AlwaysSample()
	case pct <= MinSamplePct:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(pct))
	}
}

func (o *observer) Tracer() trace.Tracer    { return o.tracer }
func (o *observer) Meter() metric.Meter     { return o.meter }
func (o *observer) Logger() Logger          { return o.logger }
func (o *observer) Middleware() *Middleware { return o.middleware }

func (o *observer) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(o.stops) - 1; i >= 0; i-- {
		if err := o.stops[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	o.stops = nil
	return errors.Join(errs...)
}
