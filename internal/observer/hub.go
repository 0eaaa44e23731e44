// Package observer fans package updates out to registered observers,
// subject to a per-package cap on observers and a per-package sliding
// one-second ceiling on deliveries.
package observer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

// ErrTooManyObservers is returned when a package already has the maximum
// number of observers.
var ErrTooManyObservers = errors.New("too many observers")

// ErrRateLimitExceeded is returned when a notification would exceed the
// per-package delivery ceiling, or the hub-wide limiter refuses it.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// ErrPackageNotFound is returned for a package the hub does not track.
var ErrPackageNotFound = errors.New("package not tracked")

// ErrObserverNotFound is returned by Unregister for an unknown observer.
var ErrObserverNotFound = errors.New("observer not found")

// Limits.
const (
	DefaultMaxObservers = 100
	DefaultRatePerSec   = 10
	MinRatePerSec       = 5
	MaxRatePerSec       = 10
	DefaultWindow       = time.Second
)

// Config configures a Hub.
type Config struct {
	// MaxObservers caps observers per package.
	MaxObservers int
	// RatePerSecond is the delivery ceiling per package per window,
	// clamped to [MinRatePerSec, MaxRatePerSec].
	RatePerSecond int
	// GlobalRate, when positive, limits notifications across all packages
	// with a token bucket of GlobalBurst.
	GlobalRate  float64
	GlobalBurst int
}

// DefaultConfig returns a cap of 100 observers and a ceiling of 10/s.
func DefaultConfig() Config {
	return Config{MaxObservers: DefaultMaxObservers, RatePerSecond: DefaultRatePerSec}
}

type entry struct {
	id           ID
	obs          Observer
	lastNotified atomic.Int64 // unix nanos; 0 = never
}

// Info describes a registered observer.
type Info struct {
	ID           ID
	LastNotified time.Time
}

// Report summarises one notification.
type Report struct {
	Delivered int
	Failed    int
}

// Hub owns the per-package observer table.
type Hub struct {
	mu       sync.RWMutex
	table    map[string]map[ID]*entry
	windows  map[string]*slidingWindow
	cfg      Config
	global   *rate.Limiter
	now      func() time.Time
	logger   *slog.Logger
	notified metric.Int64Counter
	rejected metric.Int64Counter
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) HubOption {
	return func(h *Hub) { h.now = now }
}

// WithMeterProvider sets the meter provider for delivery counters.
func WithMeterProvider(mp metric.MeterProvider) HubOption {
	return func(h *Hub) { h.initMetrics(mp) }
}

// NewHub creates a Hub.
func NewHub(cfg Config, opts ...HubOption) *Hub {
	if cfg.MaxObservers <= 0 {
		cfg.MaxObservers = DefaultMaxObservers
	}
	cfg.RatePerSecond = ClampRate(cfg.RatePerSecond)

	h := &Hub{
		table:   make(map[string]map[ID]*entry),
		windows: make(map[string]*slidingWindow),
		cfg:     cfg,
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if cfg.GlobalRate > 0 {
		burst := max(cfg.GlobalBurst, 1)
		h.global = rate.NewLimiter(rate.Limit(cfg.GlobalRate), burst)
	}
	h.initMetrics(otel.GetMeterProvider())
	for _, o := range opts {
		o(h)
	}
	return h
}

// ClampRate maps a configured rate into the valid range; zero or negative
// selects the default.
func ClampRate(r int) int {
	switch {
	case r <= 0:
		return DefaultRatePerSec
	case r < MinRatePerSec:
		return MinRatePerSec
	case r > MaxRatePerSec:
		return MaxRatePerSec
	default:
		return r
	}
}

func (h *Hub) initMetrics(mp metric.MeterProvider) {
	meter := mp.Meter("github.com/papapumpkin/semverx/internal/observer")
	var err error
	if h.notified, err = meter.Int64Counter("semverx_observer_deliveries_total",
		metric.WithDescription("Updates delivered to observers")); err != nil {
		h.notified = nil
	}
	if h.rejected, err = meter.Int64Counter("semverx_observer_rejections_total",
		metric.WithDescription("Notifications rejected by rate limiting")); err != nil {
		h.rejected = nil
	}
}

// Track makes pkg known to the hub so it can be notified even before any
// observer registers.
func (h *Hub) Track(pkg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trackLocked(pkg)
}

func (h *Hub) trackLocked(pkg string) {
	if _, ok := h.table[pkg]; !ok {
		h.table[pkg] = make(map[ID]*entry)
		h.windows[pkg] = newSlidingWindow(DefaultWindow)
	}
}

// Register adds obs for pkg and returns its ID. Existing observers are
// untouched when the cap is reached.
func (h *Hub) Register(pkg string, obs Observer) (ID, error) {
	if obs == nil {
		return "", errors.New("observer: nil observer")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.trackLocked(pkg)
	if len(h.table[pkg]) >= h.cfg.MaxObservers {
		return "", fmt.Errorf("%w: %s has %d", ErrTooManyObservers, pkg, len(h.table[pkg]))
	}
	id := NewID()
	h.table[pkg][id] = &entry{id: id, obs: obs}
	return id, nil
}

// Unregister removes one observer.
func (h *Hub) Unregister(pkg string, id ID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	obs, ok := h.table[pkg]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPackageNotFound, pkg)
	}
	if _, ok := obs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrObserverNotFound, id)
	}
	delete(obs, id)
	return nil
}

// Observers lists pkg's observers sorted by ID.
func (h *Hub) Observers(pkg string) ([]Info, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	obs, ok := h.table[pkg]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, pkg)
	}
	out := make([]Info, 0, len(obs))
	for _, e := range obs {
		info := Info{ID: e.id}
		if ns := e.lastNotified.Load(); ns != 0 {
			info.LastNotified = time.Unix(0, ns)
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Count returns how many observers pkg has.
func (h *Hub) Count(pkg string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.table[pkg])
}

// Recent returns the deliveries for pkg in the current window.
func (h *Hub) Recent(pkg string) int {
	h.mu.RLock()
	w := h.windows[pkg]
	h.mu.RUnlock()
	if w == nil {
		return 0
	}
	return w.count(h.now())
}

// Notify delivers u to every observer of pkg. If the deliveries already
// counted in the trailing window meet the ceiling, nothing is delivered
// and ErrRateLimitExceeded is returned. Observer errors and panics are
// logged and counted in the Report but do not fail the notification.
func (h *Hub) Notify(ctx context.Context, pkg string, u Update) (Report, error) {
	h.mu.RLock()
	obs, ok := h.table[pkg]
	if !ok {
		h.mu.RUnlock()
		return Report{}, fmt.Errorf("%w: %s", ErrPackageNotFound, pkg)
	}
	targets := make([]*entry, 0, len(obs))
	for _, e := range obs {
		targets = append(targets, e)
	}
	w := h.windows[pkg]
	h.mu.RUnlock()

	now := h.now()
	if !w.reserve(now, len(targets), h.cfg.RatePerSecond) {
		h.reject(ctx, pkg, "window")
		return Report{}, fmt.Errorf("%w: %s: %d deliveries in the last %s",
			ErrRateLimitExceeded, pkg, w.count(now), DefaultWindow)
	}
	if h.global != nil && !h.global.AllowN(now, 1) {
		w.release(now, len(targets))
		h.reject(ctx, pkg, "global")
		return Report{}, fmt.Errorf("%w: hub-wide limit", ErrRateLimitExceeded)
	}

	if u.At.IsZero() {
		u.At = now
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })

	var rep Report
	for _, e := range targets {
		if err := h.deliver(e, u); err != nil {
			rep.Failed++
			h.logger.Warn("observer failed",
				"package_id", pkg, "observer_id", e.id, "error", err)
		} else {
			rep.Delivered++
		}
		e.lastNotified.Store(now.UnixNano())
	}
	if h.notified != nil {
		h.notified.Add(ctx, int64(len(targets)), metric.WithAttributes(attribute.String("package_id", pkg)))
	}
	return rep, nil
}

func (h *Hub) reject(ctx context.Context, pkg, reason string) {
	h.logger.Warn("notification rate limited", "package_id", pkg, "limit", reason)
	if h.rejected != nil {
		h.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("limit", reason)))
	}
}

func (h *Hub) deliver(e *entry, u Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return e.obs.Handle(u)
}
