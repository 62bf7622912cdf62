// Package telemetry wires structured logging, tracing and metrics for the
// installer. Logging uses zerolog with the logger carried in context;
// tracing uses OpenTelemetry so spans nest to mirror the action tree;
// metrics are Prometheus counters over action outcomes.
package telemetry

import (
	"fmt"
	"time"
)

// Config contains the telemetry configuration for one installer invocation.
type Config struct {
	// ServiceName identifies this tool in exported telemetry.
	ServiceName string

	// ServiceVersion is the tool version.
	ServiceVersion string

	// Logging configures structured logging.
	Logging LoggingConfig

	// Tracing configures span export.
	Tracing TracingConfig

	// Metrics configures Prometheus exposition.
	Metrics MetricsConfig
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string

	// Format specifies the log format (console, json).
	Format string

	// Output specifies where logs are written (stderr, stdout, file path).
	Output string
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	// Enabled turns span export on.
	Enabled bool

	// Exporter selects the span exporter (stdout, otlp, none).
	Exporter string

	// Endpoint is the OTLP gRPC endpoint when Exporter is "otlp".
	Endpoint string

	// Insecure disables TLS for the OTLP connection.
	Insecure bool

	// ExportTimeout bounds a single export batch.
	ExportTimeout time.Duration
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	// Enabled turns the exposition endpoint on.
	Enabled bool

	// ListenAddr is the address the /metrics endpoint binds to.
	ListenAddr string
}

// DefaultConfig returns the configuration used when no flags override it:
// console logs on stderr at info, no span export, no metrics endpoint.
func DefaultConfig(serviceName, serviceVersion string) Config {
	return Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Enabled:       false,
			Exporter:      "none",
			ExportTimeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// Validate checks the configuration for values the wiring cannot honor.
func (c Config) Validate() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log format: %s", c.Logging.Format)
	}
	switch c.Tracing.Exporter {
	case "stdout", "otlp", "none", "":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", c.Tracing.Exporter)
	}
	if c.Tracing.Exporter == "otlp" && c.Tracing.Endpoint == "" {
		return fmt.Errorf("otlp exporter requires an endpoint")
	}
	return nil
}
