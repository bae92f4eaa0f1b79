// Package observability wires OTLP trace export into Genkit's tracer.
//
// Spans are shipped to a local collector over OTLP HTTP; the collector
// handles authentication, buffering, and forwarding.
package observability

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/quillnote/quill/internal/config"
)

// Setup configures trace export and returns a shutdown function.
// Must run before genkit.Init so the TracerProvider picks up the
// OTEL_* env vars. When tracing is disabled the returned function
// is a no-op.
func Setup(ctx context.Context, cfg config.Tracing, logger *slog.Logger) func() {
	if !cfg.Enabled {
		return func() {}
	}

	collector := cfg.CollectorURL
	if collector == "" {
		collector = "localhost:4318"
	}

	// SAFETY: os.Setenv is not concurrent-safe, but Setup is called
	// exactly once during startup, before goroutines are spawned.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(collector),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"collector", collector,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}
