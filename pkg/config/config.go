// Package config loads exfang settings from .exfang.yaml, EXFANG_*
// environment variables and defaults.
package config

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
)

// Config is the top-level configuration struct for exfang.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Output    OutputConfig    `mapstructure:"output"`
}

// StoreConfig locates the compiled template artifacts.
type StoreConfig struct {
	// Dir holds *.exft artifacts. Ignored when Manifest is set.
	Dir      string `mapstructure:"dir"`
	Manifest string `mapstructure:"manifest"`
}

// EngineConfig holds matching and rewriting knobs.
type EngineConfig struct {
	Workers       int    `mapstructure:"workers"`
	Lenient       bool   `mapstructure:"lenient"`
	Language      string `mapstructure:"language"`
	DetectionOnly bool   `mapstructure:"detection_only"`
	Passes        int    `mapstructure:"passes"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds OpenTelemetry and Prometheus settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	Environment  string  `mapstructure:"environment"`
	DebugTrace   bool    `mapstructure:"debug_trace"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
}

// OutputConfig holds report rendering settings.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

// Supported values.
var (
	Languages = []string{"", "go", "java"}
	Formats   = []string{"text", "json", "yaml"}
	LogLevels = []string{"debug", "info", "warn", "error"}
)

// sampleRatioMax is the upper bound for the trace sample ratio.
const sampleRatioMax = 1.0

// Sentinel errors for configuration validation.
var (
	// ErrInvalidWorkers indicates the workers value is negative.
	ErrInvalidWorkers = errors.New("engine.workers must be non-negative")
	// ErrInvalidPasses indicates the pass count is not positive.
	ErrInvalidPasses = errors.New("engine.passes must be positive")
	// ErrInvalidLanguage indicates an unsupported host language.
	ErrInvalidLanguage = errors.New("engine.language must be go or java")
	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("log.level must be debug, info, warn or error")
	// ErrInvalidSampleRatio indicates the sample ratio is out of range.
	ErrInvalidSampleRatio = errors.New("telemetry.sample_ratio must be between 0 and 1")
	// ErrInvalidFormat indicates an unknown output format.
	ErrInvalidFormat = errors.New("output.format must be text, json or yaml")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Engine.Workers < 0 {
		return ErrInvalidWorkers
	}

	if c.Engine.Passes < 1 {
		return ErrInvalidPasses
	}

	if !slices.Contains(Languages, c.Engine.Language) {
		return ErrInvalidLanguage
	}

	if !slices.Contains(LogLevels, strings.ToLower(c.Log.Level)) {
		return ErrInvalidLogLevel
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > sampleRatioMax {
		return ErrInvalidSampleRatio
	}

	if !slices.Contains(Formats, c.Output.Format) {
		return ErrInvalidFormat
	}

	return nil
}

// SlogLevel returns the configured level; unknown names fall back to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
