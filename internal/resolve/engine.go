package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/papapumpkin/semverx/internal/depgraph"
)

// Engine dispatches resolution requests to strategies, caching successful
// outcomes per graph generation. Engine is safe for concurrent use.
type Engine struct {
	strategies map[Kind]Strategy
	cache      *outcomeCache
	ins        *instruments
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	cacheTTL       time.Duration
	hamTimeout     time.Duration
	hybridTimeout  time.Duration
	overrides      []Strategy
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *engineConfig) { c.logger = l }
}

// WithTracerProvider sets the tracer provider; the global provider is used
// otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *engineConfig) { c.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider; the global provider is used
// otherwise.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *engineConfig) { c.meterProvider = mp }
}

// WithCacheTTL sets how long successful outcomes are kept.
func WithCacheTTL(d time.Duration) Option {
	return func(c *engineConfig) { c.cacheTTL = d }
}

// WithHamiltonianTimeout bounds standalone Hamiltonian searches.
func WithHamiltonianTimeout(d time.Duration) Option {
	return func(c *engineConfig) { c.hamTimeout = d }
}

// WithHybridFallbackTimeout bounds the Hamiltonian fallback inside Hybrid.
func WithHybridFallbackTimeout(d time.Duration) Option {
	return func(c *engineConfig) { c.hybridTimeout = d }
}

// WithStrategy replaces the built-in strategy of the same kind.
func WithStrategy(s Strategy) Option {
	return func(c *engineConfig) { c.overrides = append(c.overrides, s) }
}

// NewEngine builds an Engine with the four built-in strategies.
func NewEngine(opts ...Option) *Engine {
	cfg := engineConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		hamTimeout:     DefaultHamiltonianTimeout,
		hybridTimeout:  DefaultHybridFallbackTimeout,
	}
	for _, o := range opts {
		o(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ins, err := newInstruments(cfg.tracerProvider, cfg.meterProvider)
	if err != nil {
		logger.Warn("resolve: metrics disabled", "error", err)
		ins, _ = newInstruments(tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	}

	e := &Engine{
		strategies: map[Kind]Strategy{
			Eulerian:    EulerianCheck{},
			Hamiltonian: HamiltonianSearch{Timeout: cfg.hamTimeout},
			AStar:       AStarSearch{},
			Hybrid:      HybridResolver{FallbackTimeout: cfg.hybridTimeout},
		},
		cache:  newOutcomeCache(cfg.cacheTTL),
		ins:    ins,
		logger: logger,
	}
	for _, s := range cfg.overrides {
		e.strategies[s.Kind()] = s
	}
	return e
}

// Resolve runs the strategy of the given kind against g. Successful
// outcomes are cached by (kind, start, goal, generation of g).
func (e *Engine) Resolve(ctx context.Context, g *depgraph.Snapshot, kind Kind, start, goal string) (Outcome, error) {
	strategy, ok := e.strategies[kind]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, kind)
	}

	ctx, span := e.ins.start(ctx, kind, start, goal)
	defer span.End()
	began := time.Now()

	key := cacheKey{kind: kind, start: start, goal: goal, generation: g.Generation()}
	if o, hit := e.cache.get(key); hit {
		e.ins.record(ctx, kind, time.Since(began), true, true)
		e.logger.Debug("resolve cache hit", "strategy", kind, "start", start, "goal", goal)
		return o, nil
	}

	o, _, err := e.cache.do(ctx, key, func(ctx context.Context) (Outcome, error) {
		return strategy.Resolve(ctx, g, start, goal)
	})
	e.ins.record(ctx, kind, time.Since(began), err == nil, false)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var re *ResolutionError
		if errors.As(err, &re) {
			e.logger.Warn("resolution failed",
				"strategy", kind, "start", start, "goal", goal,
				"reason", re.Reason, "fault", re.Level)
		}
		return Outcome{}, err
	}
	return o, nil
}

// Strategy returns the strategy registered for kind.
func (e *Engine) Strategy(kind Kind) (Strategy, bool) {
	s, ok := e.strategies[kind]
	return s, ok
}

// Invalidate drops every cached outcome.
func (e *Engine) Invalidate() {
	e.cache.flush()
}

// CachedCount returns the number of cached outcomes.
func (e *Engine) CachedCount() int {
	return e.cache.len()
}
