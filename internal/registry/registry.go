// Package registry composes the index, dependency graph, resolution
// engine, fault model, and observer hub into a package registry. It is
// the only package that mutates more than one of them at a time.
//
// Writes are serialized by a registry-wide mutex so that a record and its
// graph node never disagree. Observer notifications produced under that
// mutex are queued and delivered after it is released, so observers may
// call back into the registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/papapumpkin/semverx/internal/depgraph"
	"github.com/papapumpkin/semverx/internal/fault"
	"github.com/papapumpkin/semverx/internal/gate"
	"github.com/papapumpkin/semverx/internal/index"
	"github.com/papapumpkin/semverx/internal/observer"
	"github.com/papapumpkin/semverx/internal/resolve"
	"github.com/papapumpkin/semverx/internal/seal"
	"github.com/papapumpkin/semverx/internal/telemetry"
)

// ErrFrozen is returned for writes to a record whose updates are frozen.
var ErrFrozen = errors.New("package updates frozen")

// ErrManualReview is returned for a promotion while manual review is pending.
var ErrManualReview = errors.New("package awaiting manual review")

// ErrRefused is returned by Fetch for a package at SystemPanic.
var ErrRefused = errors.New("package refused at SystemPanic")

// ErrNoStableSnapshot is returned when rolling back a record that never
// carried an all-stable version.
var ErrNoStableSnapshot = errors.New("no stable snapshot to roll back to")

// ErrInvalidRecovery is returned by Recover for actions other than
// RollbackToStable and SystemReset.
var ErrInvalidRecovery = errors.New("invalid recovery action")

// ErrEmptyID is returned for an empty package ID.
var ErrEmptyID = errors.New("empty package id")

// Change is one fault transition applied to a record.
type Change struct {
	PackageID string
	fault.Transition
	Reason string
}

// Registry is a concurrency-safe package registry.
type Registry struct {
	mu sync.Mutex

	index  *index.Index
	graph  *depgraph.Graph
	engine *resolve.Engine
	hub    *observer.Hub
	gate   *gate.Gate
	signer seal.Signer
	events *telemetry.Emitter
	logger *slog.Logger
	now    func() time.Time
	ins    *instruments
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	engine         *resolve.Engine
	hub            *observer.Hub
	gate           *gate.Gate
	signer         seal.Signer
	events         *telemetry.Emitter
	now            func() time.Time
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithLogger sets the registry logger. The default engine and hub share it.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEngine replaces the default resolution engine.
func WithEngine(e *resolve.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithHub replaces the default observer hub.
func WithHub(h *observer.Hub) Option {
	return func(o *options) { o.hub = h }
}

// WithGate enables the coherence gate on published artifacts.
func WithGate(g *gate.Gate) Option {
	return func(o *options) { o.gate = g }
}

// WithSigner signs the checksum of every published artifact.
func WithSigner(s seal.Signer) Option {
	return func(o *options) { o.signer = s }
}

// WithEmitter records registry activity to a telemetry stream.
func WithEmitter(e *telemetry.Emitter) Option {
	return func(o *options) { o.events = e }
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithTracerProvider sets the tracer provider; the global one is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider; the global one is used otherwise.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	return build(index.New(), depgraph.New(), opts)
}

func build(ix *index.Index, g *depgraph.Graph, opts []Option) *Registry {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	if o.meterProvider == nil {
		o.meterProvider = otel.GetMeterProvider()
	}
	if o.engine == nil {
		o.engine = resolve.NewEngine(
			resolve.WithLogger(o.logger),
			resolve.WithTracerProvider(o.tracerProvider),
			resolve.WithMeterProvider(o.meterProvider),
		)
	}
	if o.hub == nil {
		o.hub = observer.NewHub(observer.DefaultConfig(),
			observer.WithLogger(o.logger),
			observer.WithMeterProvider(o.meterProvider),
		)
	}
	ins, err := newInstruments(o.tracerProvider, o.meterProvider)
	if err != nil {
		o.logger.Warn("registry metrics disabled", "error", err)
		ins = noopInstruments(o.tracerProvider)
	}
	r := &Registry{
		index:  ix,
		graph:  g,
		engine: o.engine,
		hub:    o.hub,
		gate:   o.gate,
		signer: o.signer,
		events: o.events,
		logger: o.logger.With("component", "registry"),
		now:    o.now,
		ins:    ins,
	}
	for _, id := range ix.Keys() {
		r.hub.Track(id)
	}
	return r
}

// Lookup returns a copy of the record for id.
func (r *Registry) Lookup(id string) (index.Record, error) {
	rec, ok := r.index.Search(id)
	if !ok {
		return index.Record{}, fmt.Errorf("registry: %w: %s", index.ErrNotFound, id)
	}
	return rec, nil
}

// Records returns every record in package ID order.
func (r *Registry) Records() []index.Record {
	return r.index.All()
}

// Len returns the number of published packages.
func (r *Registry) Len() int {
	return r.index.Len()
}

// Graph returns a point-in-time snapshot of the dependency graph.
func (r *Registry) Graph() *depgraph.Snapshot {
	return r.graph.Snapshot()
}

func (r *Registry) emit(kind, pkg string, level fault.Level, data any) {
	evt := telemetry.Event{Kind: kind, PackageID: pkg, Data: data}
	if level != fault.Clean {
		evt.Level = level.String()
	}
	if err := r.events.Emit(evt); err != nil {
		r.logger.Warn("telemetry emit failed", "kind", kind, "error", err)
	}
}

// dispatch delivers queued updates. It must not be called with r.mu held.
// Rate-limit rejections are logged and never escalate a fault.
func (r *Registry) dispatch(ctx context.Context, updates []observer.Update) {
	for _, u := range updates {
		if r.hub.Count(u.PackageID) == 0 {
			continue
		}
		if u.At.IsZero() {
			u.At = r.now()
		}
		rep, err := r.hub.Notify(ctx, u.PackageID, u)
		switch {
		case errors.Is(err, observer.ErrRateLimitExceeded):
			r.logger.Warn("notification throttled", "package_id", u.PackageID, "type", u.Type)
			r.emit(telemetry.KindNotify, u.PackageID, u.Fault, map[string]any{"type": u.Type.String(), "throttled": true})
			continue
		case err != nil:
			r.logger.Debug("notification skipped", "package_id", u.PackageID, "error", err)
			continue
		}
		if rep.Delivered+rep.Failed == 0 {
			continue
		}
		r.emit(telemetry.KindNotify, u.PackageID, u.Fault, map[string]any{
			"type":      u.Type.String(),
			"delivered": rep.Delivered,
			"failed":    rep.Failed,
		})
	}
}
