package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/exfang/pkg/config"
)

func validConfig() config.Config {
	return config.Config{
		Engine:    config.EngineConfig{Workers: 4, Passes: 1, Language: "go"},
		Log:       config.LogConfig{Level: "info"},
		Telemetry: config.TelemetryConfig{SampleRatio: 0.5},
		Output:    config.OutputConfig{Format: "json"},
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "exfang.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultStoreDir, cfg.Store.Dir)
	assert.Empty(t, cfg.Store.Manifest)
	assert.Equal(t, config.DefaultWorkers, cfg.Engine.Workers)
	assert.Equal(t, config.DefaultPasses, cfg.Engine.Passes)
	assert.False(t, cfg.Engine.Lenient)
	assert.Equal(t, config.DefaultLogLevel, cfg.Log.Level)
	assert.InDelta(t, config.DefaultSampleRatio, cfg.Telemetry.SampleRatio, 0)
	assert.Equal(t, config.DefaultOutputFormat, cfg.Output.Format)
	assert.True(t, cfg.Output.Color)
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
store:
  manifest: /srv/templates/manifest.yaml
engine:
  workers: 8
  lenient: true
  language: java
  passes: 3
log:
  level: debug
  json: true
telemetry:
  otlp_endpoint: localhost:4317
  sample_ratio: 0.25
  metrics_addr: ":9464"
output:
  format: yaml
  color: false
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/templates/manifest.yaml", cfg.Store.Manifest)
	assert.Equal(t, 8, cfg.Engine.Workers)
	assert.True(t, cfg.Engine.Lenient)
	assert.Equal(t, "java", cfg.Engine.Language)
	assert.Equal(t, 3, cfg.Engine.Passes)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	assert.InDelta(t, 0.25, cfg.Telemetry.SampleRatio, 1e-9)
	assert.Equal(t, ":9464", cfg.Telemetry.MetricsAddr)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.False(t, cfg.Output.Color)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("EXFANG_ENGINE_WORKERS", "6")
	t.Setenv("EXFANG_STORE_DIR", "/tmp/env-templates")
	t.Setenv("EXFANG_OUTPUT_FORMAT", "json")

	cfg, err := config.LoadConfig(writeConfig(t, "engine:\n  workers: 2\n"))
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Engine.Workers)
	assert.Equal(t, "/tmp/env-templates", cfg.Store.Dir)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "engine: [unterminated"))
	require.Error(t, err)
}

func TestLoadConfig_InvalidValue(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "engine:\n  passes: 0\n"))
	require.ErrorIs(t, err, config.ErrInvalidPasses)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"valid", func(*config.Config) {}, nil},
		{"negative workers", func(c *config.Config) { c.Engine.Workers = -1 }, config.ErrInvalidWorkers},
		{"zero passes", func(c *config.Config) { c.Engine.Passes = 0 }, config.ErrInvalidPasses},
		{"unknown language", func(c *config.Config) { c.Engine.Language = "cobol" }, config.ErrInvalidLanguage},
		{"auto language", func(c *config.Config) { c.Engine.Language = "" }, nil},
		{"unknown level", func(c *config.Config) { c.Log.Level = "loud" }, config.ErrInvalidLogLevel},
		{"upper-case level", func(c *config.Config) { c.Log.Level = "WARN" }, nil},
		{"ratio above one", func(c *config.Config) { c.Telemetry.SampleRatio = 1.5 }, config.ErrInvalidSampleRatio},
		{"negative ratio", func(c *config.Config) { c.Telemetry.SampleRatio = -0.1 }, config.ErrInvalidSampleRatio},
		{"unknown format", func(c *config.Config) { c.Output.Format = "xml" }, config.ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.want == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLogConfig_SlogLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelWarn, config.LogConfig{Level: "warn"}.SlogLevel())
	assert.Equal(t, slog.LevelError, config.LogConfig{Level: "error"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, config.LogConfig{Level: "unknown"}.SlogLevel())
}
