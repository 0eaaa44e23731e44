package registry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/papapumpkin/semverx/internal/fault"
)

const instrumentationName = "github.com/papapumpkin/semverx/internal/registry"

type instruments struct {
	tracer      trace.Tracer
	publishes   metric.Int64Counter
	transitions metric.Int64Counter
	recoveries  metric.Int64Counter
}

func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider) (*instruments, error) {
	meter := mp.Meter(instrumentationName)
	ins := &instruments{tracer: tp.Tracer(instrumentationName)}

	var err error
	ins.publishes, err = meter.Int64Counter(
		"semverx_publish_total",
		metric.WithDescription("Publish and promote requests by result"),
	)
	if err != nil {
		return nil, err
	}
	ins.transitions, err = meter.Int64Counter(
		"semverx_fault_transitions_total",
		metric.WithDescription("Fault escalations by resulting level and recovery action"),
	)
	if err != nil {
		return nil, err
	}
	ins.recoveries, err = meter.Int64Counter(
		"semverx_recoveries_total",
		metric.WithDescription("Explicit recovery actions"),
	)
	if err != nil {
		return nil, err
	}
	return ins, nil
}

func noopInstruments(tp trace.TracerProvider) *instruments {
	ins, _ := newInstruments(tp, metricnoop.NewMeterProvider())
	return ins
}

func (i *instruments) published(ctx context.Context, op string, err error) {
	i.publishes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("success", err == nil),
	))
}

func (i *instruments) escalated(ctx context.Context, tr fault.Transition) {
	i.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("level", tr.To.String()),
		attribute.String("action", tr.Action().String()),
	))
}

func (i *instruments) recovered(ctx context.Context, a fault.RecoveryAction) {
	i.recoveries.Add(ctx, 1, metric.WithAttributes(attribute.String("action", a.String())))
}
