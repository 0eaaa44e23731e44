package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StoreConfig selects and locates the snapshot backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// ObserverConfig holds the observer hub limits.
type ObserverConfig struct {
	MaxPerPackage int     `mapstructure:"max_per_package"`
	RatePerSecond int     `mapstructure:"rate_per_second"`
	GlobalRate    float64 `mapstructure:"global_rate"`
	GlobalBurst   int     `mapstructure:"global_burst"`
}

// ResolveConfig holds resolution engine tuning.
type ResolveConfig struct {
	HamiltonianTimeout time.Duration `mapstructure:"hamiltonian_timeout"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
}

// GateConfig holds coherence gate settings.
type GateConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Threshold float64 `mapstructure:"threshold"`
}

// SealConfig locates the artifact signing key.
type SealConfig struct {
	KeyFile string `mapstructure:"key_file"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	Dir   string `mapstructure:"dir"`
}

// TelemetryConfig locates the JSONL event stream.
type TelemetryConfig struct {
	Path string `mapstructure:"path"`
}

// ExporterConfig selects a tracing or metrics exporter.
type ExporterConfig struct {
	Exporter string `mapstructure:"exporter"`
	Endpoint string `mapstructure:"endpoint"`
}

// Config holds all runtime configuration for a semverx invocation.
// Values are populated from .semverx.yaml, SEMVERX_* env vars, and CLI flags.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Verbose   bool            `mapstructure:"verbose"`
	Store     StoreConfig     `mapstructure:"store"`
	Observer  ObserverConfig  `mapstructure:"observer"`
	Resolve   ResolveConfig   `mapstructure:"resolve"`
	Gate      GateConfig      `mapstructure:"gate"`
	Seal      SealConfig      `mapstructure:"seal"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Tracing   ExporterConfig  `mapstructure:"tracing"`
	Metrics   ExporterConfig  `mapstructure:"metrics"`
}

// EnvPrefix is the prefix for environment overrides; nested keys use
// underscores, e.g. SEMVERX_OBSERVER_RATE_PER_SECOND.
const EnvPrefix = "SEMVERX"

// BindEnv maps SEMVERX_* environment variables onto viper keys.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("data_dir", ".semverx")
	viper.SetDefault("verbose", false)
	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.path", "")
	viper.SetDefault("observer.max_per_package", 100)
	viper.SetDefault("observer.rate_per_second", 10)
	viper.SetDefault("observer.global_rate", 0.0)
	viper.SetDefault("observer.global_burst", 1)
	viper.SetDefault("resolve.hamiltonian_timeout", 500*time.Millisecond)
	viper.SetDefault("resolve.cache_ttl", 10*time.Minute)
	viper.SetDefault("gate.enabled", false)
	viper.SetDefault("gate.threshold", 0.954)
	viper.SetDefault("seal.key_file", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.json", false)
	viper.SetDefault("log.dir", "")
	viper.SetDefault("telemetry.path", "")
	viper.SetDefault("tracing.exporter", "none")
	viper.SetDefault("tracing.endpoint", "")
	viper.SetDefault("metrics.exporter", "none")
	viper.SetDefault("metrics.endpoint", "")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "badger":
	default:
		return fmt.Errorf("config: store.driver %q: want sqlite or badger", c.Store.Driver)
	}
	if c.Observer.MaxPerPackage <= 0 {
		return fmt.Errorf("config: observer.max_per_package must be positive, got %d", c.Observer.MaxPerPackage)
	}
	if c.Observer.RatePerSecond < 0 {
		return fmt.Errorf("config: observer.rate_per_second must not be negative, got %d", c.Observer.RatePerSecond)
	}
	if c.Resolve.HamiltonianTimeout <= 0 {
		return fmt.Errorf("config: resolve.hamiltonian_timeout must be positive, got %s", c.Resolve.HamiltonianTimeout)
	}
	if c.Gate.Threshold < 0 || c.Gate.Threshold > 1 {
		return fmt.Errorf("config: gate.threshold %v outside [0, 1]", c.Gate.Threshold)
	}
	switch c.Tracing.Exporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("config: tracing.exporter %q: want none, stdout or otlp", c.Tracing.Exporter)
	}
	switch c.Metrics.Exporter {
	case "none", "stdout", "prometheus":
	default:
		return fmt.Errorf("config: metrics.exporter %q: want none, stdout or prometheus", c.Metrics.Exporter)
	}
	return nil
}

// StorePath returns the configured store path, defaulting to a file or
// directory under DataDir depending on the driver.
func (c Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	if c.Store.Driver == "badger" {
		return filepath.Join(c.DataDir, "badger")
	}
	return filepath.Join(c.DataDir, "registry.db")
}

// TelemetryPath returns the telemetry JSONL path, defaulting to a file
// under DataDir.
func (c Config) TelemetryPath() string {
	if c.Telemetry.Path != "" {
		return c.Telemetry.Path
	}
	return filepath.Join(c.DataDir, "telemetry.jsonl")
}
