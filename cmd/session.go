package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/semverx/internal/config"
	"github.com/papapumpkin/semverx/internal/gate"
	"github.com/papapumpkin/semverx/internal/logging"
	"github.com/papapumpkin/semverx/internal/observability"
	"github.com/papapumpkin/semverx/internal/observer"
	"github.com/papapumpkin/semverx/internal/registry"
	"github.com/papapumpkin/semverx/internal/resolve"
	"github.com/papapumpkin/semverx/internal/seal"
	"github.com/papapumpkin/semverx/internal/store"
	"github.com/papapumpkin/semverx/internal/telemetry"
	"github.com/papapumpkin/semverx/internal/ui"
)

// session is one load-operate-save cycle over the persisted registry.
type session struct {
	cfg    config.Config
	log    *logging.Logger
	prov   *observability.Providers
	events *telemetry.Emitter
	st     store.Store
	reg    *registry.Registry
	out    *ui.Printer
}

// withRegistry opens a session, runs fn, and saves the registry when
// mutate is set and fn succeeded.
func withRegistry(cmd *cobra.Command, mutate bool, fn func(ctx context.Context, s *session) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.close(ctx))
	}()

	if err := fn(ctx, s); err != nil {
		return err
	}
	if !mutate {
		return nil
	}
	return s.reg.Save(ctx, s.st)
}

func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	level := cfg.Log.Level
	if cfg.Verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:   level,
		JSON:    cfg.Log.JSON,
		Dir:     cfg.Log.Dir,
		Service: "semverx",
		Stderr:  cmd.ErrOrStderr(),
		Quiet:   !cfg.Verbose,
	})
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: logger, out: ui.NewWriter(cmd.OutOrStdout())}

	s.prov, err = observability.Setup(ctx, observability.Config{
		ServiceName:    "semverx",
		TraceExporter:  cfg.Tracing.Exporter,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		MetricExporter: cfg.Metrics.Exporter,
		Writer:         cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, errors.Join(err, s.close(ctx))
	}
	s.prov.Install()

	s.events, err = telemetry.NewEmitter(cfg.TelemetryPath())
	if err != nil {
		return nil, errors.Join(err, s.close(ctx))
	}

	s.st, err = store.Open(ctx, store.Config{
		Driver: cfg.Store.Driver,
		Path:   cfg.StorePath(),
		Logger: logger.Logger,
	})
	if err != nil {
		return nil, errors.Join(err, s.close(ctx))
	}

	opts, err := s.registryOptions()
	if err != nil {
		return nil, errors.Join(err, s.close(ctx))
	}
	s.reg, err = registry.Restore(ctx, s.st, opts...)
	if err != nil {
		return nil, errors.Join(err, s.close(ctx))
	}
	return s, nil
}

func (s *session) registryOptions() ([]registry.Option, error) {
	cfg := s.cfg
	opts := []registry.Option{
		registry.WithLogger(s.log.Logger),
		registry.WithEmitter(s.events),
		registry.WithTracerProvider(s.prov.Tracer),
		registry.WithMeterProvider(s.prov.Meter),
		registry.WithEngine(resolve.NewEngine(
			resolve.WithLogger(s.log.Logger),
			resolve.WithTracerProvider(s.prov.Tracer),
			resolve.WithMeterProvider(s.prov.Meter),
			resolve.WithCacheTTL(cfg.Resolve.CacheTTL),
			resolve.WithHamiltonianTimeout(cfg.Resolve.HamiltonianTimeout),
		)),
		registry.WithHub(observer.NewHub(observer.Config{
			MaxObservers:  cfg.Observer.MaxPerPackage,
			RatePerSecond: cfg.Observer.RatePerSecond,
			GlobalRate:    cfg.Observer.GlobalRate,
			GlobalBurst:   cfg.Observer.GlobalBurst,
		},
			observer.WithLogger(s.log.Logger),
			observer.WithMeterProvider(s.prov.Meter),
		)),
	}
	if cfg.Gate.Enabled {
		opts = append(opts, registry.WithGate(gate.New(gate.DiffScorer{}, cfg.Gate.Threshold)))
	}
	if cfg.Seal.KeyFile != "" {
		key, err := os.ReadFile(cfg.Seal.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read signing key: %w", err)
		}
		signer, err := seal.NewHMACSigner(bytes.TrimSpace(key))
		if err != nil {
			return nil, err
		}
		opts = append(opts, registry.WithSigner(signer))
	}
	return opts, nil
}

// close releases everything the session opened, in reverse order.
func (s *session) close(ctx context.Context) error {
	var errs []error
	if s.st != nil {
		errs = append(errs, s.st.Close())
	}
	if s.events != nil {
		errs = append(errs, s.events.Close())
	}
	if s.prov != nil {
		if s.cfg.Verbose {
			if names, err := s.prov.Gather(); err == nil && len(names) > 0 {
				s.log.Debug("metrics gathered", "families", strings.Join(names, ","))
			}
		}
		errs = append(errs, s.prov.Shutdown(ctx))
	}
	if s.log != nil {
		errs = append(errs, s.log.Close())
	}
	return errors.Join(errs...)
}
