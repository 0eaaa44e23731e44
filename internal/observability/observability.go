// Package observability wires OpenTelemetry tracing and metrics for the
// registry. Traces go to stdout or an OTLP/gRPC collector; metrics go to
// stdout or a private Prometheus registry served over HTTP.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ErrUnknownExporter is returned for an exporter name Setup does not know.
var ErrUnknownExporter = errors.New("unknown exporter")

// Exporter names.
const (
	ExporterNone       = "none"
	ExporterStdout     = "stdout"
	ExporterOTLP       = "otlp"
	ExporterPrometheus = "prometheus"
)

// Config selects exporters.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// TraceExporter is none, stdout, or otlp.
	TraceExporter string
	// OTLPEndpoint is host:port of the collector; empty uses the exporter default.
	OTLPEndpoint string
	// MetricExporter is none, stdout, or prometheus.
	MetricExporter string
	// Writer receives stdout exporter output; nil means os.Stdout.
	Writer io.Writer
}

// Providers holds the configured providers and their shutdown hooks.
type Providers struct {
	Tracer   trace.TracerProvider
	Meter    metric.MeterProvider
	registry *prometheus.Registry
	shutdown []func(context.Context) error
}

// Setup builds providers for cfg. Exporters set to none (or empty) yield
// no-op providers. Call Shutdown to flush.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	p := &Providers{
		Tracer: tracenoop.NewTracerProvider(),
		Meter:  metricnoop.NewMeterProvider(),
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	name := cfg.ServiceName
	if name == "" {
		name = "semverx"
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", name),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	if err := p.setupTracing(ctx, cfg, w, res); err != nil {
		return nil, err
	}
	if err := p.setupMetrics(cfg, w, res); err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	return p, nil
}

func (p *Providers) setupTracing(ctx context.Context, cfg Config, w io.Writer, res *resource.Resource) error {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch cfg.TraceExporter {
	case "", ExporterNone:
		return nil
	case ExporterStdout:
		exp, err = stdouttrace.New(stdouttrace.WithWriter(w))
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		exp, err = otlptracegrpc.New(ctx, opts...)
	default:
		return fmt.Errorf("%w: trace %q", ErrUnknownExporter, cfg.TraceExporter)
	}
	if err != nil {
		return fmt.Errorf("observability: create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	p.Tracer = tp
	p.shutdown = append(p.shutdown, tp.Shutdown)
	return nil
}

func (p *Providers) setupMetrics(cfg Config, w io.Writer, res *resource.Resource) error {
	var reader sdkmetric.Reader
	switch cfg.MetricExporter {
	case "", ExporterNone:
		return nil
	case ExporterStdout:
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return fmt.Errorf("observability: create stdout metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exp)
	case ExporterPrometheus:
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		exp, err := promexporter.New(promexporter.WithRegisterer(reg))
		if err != nil {
			return fmt.Errorf("observability: create prometheus exporter: %w", err)
		}
		p.registry = reg
		reader = exp
	default:
		return fmt.Errorf("%w: metric %q", ErrUnknownExporter, cfg.MetricExporter)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	p.Meter = mp
	p.shutdown = append(p.shutdown, mp.Shutdown)
	return nil
}

// Install makes p the process-wide otel providers.
func (p *Providers) Install() {
	otel.SetTracerProvider(p.Tracer)
	otel.SetMeterProvider(p.Meter)
}

// MetricsHandler serves the Prometheus registry, or returns nil when the
// prometheus exporter is not configured.
func (p *Providers) MetricsHandler() http.Handler {
	if p.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Gather returns the names of the gathered Prometheus metric families, or nil when the
// prometheus exporter is not configured.
func (p *Providers) Gather() ([]string, error) {
	if p.registry == nil {
		return nil, nil
	}
	mfs, err := p.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("observability: gather: %w", err)
	}
	names := make([]string, len(mfs))
	for i, mf := range mfs {
		names[i] = mf.GetName()
	}
	return names, nil
}

// Shutdown flushes and stops every provider, in reverse setup order.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.shutdown) - 1; i >= 0; i-- {
		if err := p.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.shutdown = nil
	return errors.Join(errs...)
}
