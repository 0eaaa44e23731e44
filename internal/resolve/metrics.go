package resolve

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName scopes the tracer and meter.
const instrumentationName = "github.com/papapumpkin/semverx/internal/resolve"

type instruments struct {
	tracer   trace.Tracer
	duration metric.Float64Histogram
	requests metric.Int64Counter
	cacheHit metric.Int64Counter
}

func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider) (*instruments, error) {
	meter := mp.Meter(instrumentationName)
	ins := &instruments{tracer: tp.Tracer(instrumentationName)}

	var err error
	ins.duration, err = meter.Float64Histogram(
		"semverx_resolve_duration_seconds",
		metric.WithDescription("Duration of dependency resolution requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	ins.requests, err = meter.Int64Counter(
		"semverx_resolve_total",
		metric.WithDescription("Resolution requests by strategy and result"),
	)
	if err != nil {
		return nil, err
	}
	ins.cacheHit, err = meter.Int64Counter(
		"semverx_resolve_cache_hits_total",
		metric.WithDescription("Resolution requests served from cache"),
	)
	if err != nil {
		return nil, err
	}
	return ins, nil
}

func (i *instruments) start(ctx context.Context, kind Kind, start, goal string) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, "resolve.Engine.Resolve",
		trace.WithAttributes(
			attribute.String("resolve.strategy", string(kind)),
			attribute.String("resolve.start", start),
			attribute.String("resolve.goal", goal),
		),
	)
}

func (i *instruments) record(ctx context.Context, kind Kind, elapsed time.Duration, ok, cached bool) {
	attrs := metric.WithAttributes(
		attribute.String("strategy", string(kind)),
		attribute.Bool("success", ok),
	)
	i.duration.Record(ctx, elapsed.Seconds(), attrs)
	i.requests.Add(ctx, 1, attrs)
	if cached {
		i.cacheHit.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", string(kind))))
	}
}
