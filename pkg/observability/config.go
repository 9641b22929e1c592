// Package observability wires OpenTelemetry tracing and metrics and the
// structured logger used by every exfang entry point (CLI and MCP server).
package observability

import "log/slog"

// AppMode identifies how the binary was launched.
type AppMode string

const (
	// ModeCLI is a one-shot command (compile, check, apply, inspect).
	ModeCLI AppMode = "cli"
	// ModeMCP is the MCP stdio server.
	ModeMCP AppMode = "mcp"
)

const (
	defaultServiceName        = "exfang"
	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment, e.g. "ci" or "dev".
	Environment string

	Mode AppMode

	// OTLPEndpoint is the OTLP gRPC collector address, e.g. "localhost:4317".
	// Empty disables OTLP export.
	OTLPEndpoint string

	OTLPHeaders  map[string]string
	OTLPInsecure bool

	// DebugTrace forces every trace to be sampled.
	DebugTrace bool

	// SampleRatio is the root sampling ratio when DebugTrace is off. Zero
	// samples every root span.
	SampleRatio float64

	LogLevel slog.Level
	LogJSON  bool

	// TraceVerbose keeps per-template spans. Without it only unit and run
	// spans are exported.
	TraceVerbose bool

	// PrometheusMetrics registers a Prometheus reader on the meter provider
	// so Providers.MetricsHandler serves the engine metrics.
	PrometheusMetrics bool

	// ShutdownTimeoutSec bounds the flush on shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns the zero-setup configuration: CLI mode, info logs,
// no export.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
