package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/modpolyfill/pkg/disallow"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/mapping"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/observability"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/rewrite"
	"github.com/Sumatoshi-tech/modpolyfill/pkg/transform"
)

// Sentinel validation errors.
var (
	ErrInvalidPort        = errors.New("invalid server port")
	ErrInvalidCacheSize   = errors.New("server cache size must not be negative")
	ErrInvalidWorkers     = errors.New("transform workers must not be negative")
	ErrInvalidFormat      = errors.New("logging format must be text or json")
	ErrInvalidSampleRatio = errors.New("sample ratio must be within [0, 1]")
	ErrEmptyCanonical     = errors.New("canonical module and name must be set")
	ErrInvalidExtension   = errors.New("extensions must start with a dot")
)

// Logging formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

const maxPort = 65535

// Config holds all modpolyfill settings.
type Config struct {
	Canonical     CanonicalConfig     `mapstructure:"canonical"`
	Mappings      MappingsConfig      `mapstructure:"mappings"`
	Disallowed    any                 `mapstructure:"disallowed"`
	Transform     TransformConfig     `mapstructure:"transform"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// CanonicalConfig names the default import that rewritten code relies on.
type CanonicalConfig struct {
	Module string `mapstructure:"module"`
	Name   string `mapstructure:"name"`
}

// MappingsConfig selects the mapping table.
type MappingsConfig struct {
	// Path to a JSON or YAML table; empty uses the embedded table.
	Path     string `mapstructure:"path"`
	Validate bool   `mapstructure:"validate"`
}

// TransformConfig tunes file processing.
type TransformConfig struct {
	MaxFileSize string   `mapstructure:"max_file_size"`
	Extensions  []string `mapstructure:"extensions"`
	Workers     int      `mapstructure:"workers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	MaxBody      string        `mapstructure:"max_body"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Port         int           `mapstructure:"port"`
	CacheSize    int           `mapstructure:"cache_size"`
}

// Addr is the listen address.
func (sc ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", sc.Host, sc.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds OpenTelemetry export settings.
type ObservabilityConfig struct {
	OTLPEndpoint       string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders        string  `mapstructure:"otlp_headers"`
	SampleRatio        float64 `mapstructure:"sample_ratio"`
	ShutdownTimeoutSec int     `mapstructure:"shutdown_timeout_sec"`
	OTLPInsecure       bool    `mapstructure:"otlp_insecure"`
}

// Validate checks settings that would otherwise fail late.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.Canonical.Module) == "" || strings.TrimSpace(cfg.Canonical.Name) == "" {
		return ErrEmptyCanonical
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, cfg.Server.Port)
	}

	if cfg.Server.CacheSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, cfg.Server.CacheSize)
	}

	if cfg.Transform.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, cfg.Transform.Workers)
	}

	for _, ext := range cfg.Transform.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
		}
	}

	if !slices.Contains([]string{FormatText, FormatJSON}, cfg.Logging.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, cfg.Logging.Format)
	}

	if _, err := observability.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging level: %w", err)
	}

	if cfg.Observability.SampleRatio < 0 || cfg.Observability.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, cfg.Observability.SampleRatio)
	}

	if _, err := transform.ParseSize(cfg.Transform.MaxFileSize); err != nil {
		return fmt.Errorf("transform: %w", err)
	}

	if _, err := transform.ParseSize(cfg.Server.MaxBody); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if _, err := disallow.FromValue(cfg.Disallowed); err != nil {
		return fmt.Errorf("disallowed: %w", err)
	}

	return nil
}

// MaxFileSize returns transform.max_file_size in bytes.
func (cfg *Config) MaxFileSize() int64 {
	size, err := transform.ParseSize(cfg.Transform.MaxFileSize)
	if err != nil {
		return 0
	}

	return size
}

// MaxBodySize returns server.max_body in bytes.
func (cfg *Config) MaxBodySize() int64 {
	size, err := transform.ParseSize(cfg.Server.MaxBody)
	if err != nil {
		return 0
	}

	return size
}

// Records loads the configured mapping table.
func (cfg *Config) Records() ([]mapping.Record, error) {
	if cfg.Mappings.Path == "" {
		records, err := mapping.Default()
		if err != nil {
			return nil, fmt.Errorf("default mapping table: %w", err)
		}

		return records, nil
	}

	records, err := mapping.LoadFile(cfg.Mappings.Path, mapping.LoadOptions{Validate: cfg.Mappings.Validate})
	if err != nil {
		return nil, fmt.Errorf("mapping table: %w", err)
	}

	return records, nil
}

// Engine builds a rewrite engine from the mapping table, the disallow
// filter and the canonical import settings.
func (cfg *Config) Engine() (*rewrite.Engine, error) {
	records, err := cfg.Records()
	if err != nil {
		return nil, err
	}

	filter, err := disallow.FromValue(cfg.Disallowed)
	if err != nil {
		return nil, fmt.Errorf("disallowed: %w", err)
	}

	return rewrite.New(records, rewrite.Options{
		Disallowed:      filter,
		CanonicalModule: cfg.Canonical.Module,
		CanonicalName:   cfg.Canonical.Name,
	}), nil
}

// ObservabilityConfig converts the settings for observability.Init.
func (cfg *Config) ObservabilityConfig(mode observability.AppMode, version string) observability.Config {
	obs := observability.DefaultConfig()

	obs.ServiceVersion = version
	obs.Mode = mode
	obs.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obs.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Observability.OTLPHeaders)
	obs.OTLPInsecure = cfg.Observability.OTLPInsecure
	obs.SampleRatio = cfg.Observability.SampleRatio
	obs.LogJSON = cfg.Logging.Format == FormatJSON
	obs.ShutdownTimeoutSec = cfg.Observability.ShutdownTimeoutSec

	if level, err := observability.ParseLevel(cfg.Logging.Level); err == nil {
		obs.LogLevel = level
	}

	return obs
}
