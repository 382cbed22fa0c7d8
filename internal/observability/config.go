package observability

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Config groups logging, metrics and tracing settings.
type Config struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json, text
}

// DefaultConfig has everything but text logging at info level switched off.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:        false,
			PrometheusPort: 9090,
		},
		Tracing: TracingConfig{
			Enabled:        false,
			Exporter:       "otlp",
			OTLPEndpoint:   "localhost:4318",
			SampleRate:     1.0,
			ServiceName:    "agentcore",
			ServiceVersion: "1.0.0",
		},
	}
}

// LoadConfig reads a standalone observability YAML file with a top-level
// "observability" key and overlays it on the defaults. A missing file or an
// empty path yields the defaults.
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()
	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return config, fmt.Errorf("read observability file: %w", err)
	}

	var doc struct {
		Observability Config `yaml:"observability"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return config, fmt.Errorf("parse observability file %s: %w", configPath, err)
	}
	return Merge(config, doc.Observability), nil
}

// Merge overlays the non-zero values of override on base. Enabled flags always
// come from override.
func Merge(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	base.Metrics.Enabled = override.Metrics.Enabled
	if override.Metrics.PrometheusPort > 0 {
		base.Metrics.PrometheusPort = override.Metrics.PrometheusPort
	}

	base.Tracing.Enabled = override.Tracing.Enabled
	if override.Tracing.Exporter != "" {
		base.Tracing.Exporter = override.Tracing.Exporter
	}
	if override.Tracing.OTLPEndpoint != "" {
		base.Tracing.OTLPEndpoint = override.Tracing.OTLPEndpoint
	}
	if override.Tracing.ZipkinEndpoint != "" {
		base.Tracing.ZipkinEndpoint = override.Tracing.ZipkinEndpoint
	}
	// A sample rate of exactly 0 cannot be expressed here; disable tracing instead.
	if override.Tracing.SampleRate > 0 && override.Tracing.SampleRate <= 1.0 {
		base.Tracing.SampleRate = override.Tracing.SampleRate
	}
	if override.Tracing.ServiceName != "" {
		base.Tracing.ServiceName = override.Tracing.ServiceName
	}
	if override.Tracing.ServiceVersion != "" {
		base.Tracing.ServiceVersion = override.Tracing.ServiceVersion
	}
	return base
}
