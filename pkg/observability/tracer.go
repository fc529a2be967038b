// Package observability adapts the teacher's tracer.go/metrics.go/
// constants.go trio (pkg/observability in kadirpekel-hector) to conduit's
// components: turn loop, tool executor, orchestrator, bandit, recall, and
// guardians replace the teacher's agent/LLM/HTTP/RAG subsystems as the
// things being traced and counted.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerConfig mirrors the teacher's config shape; conduit has no OTLP
// collector dependency wired in (out of scope per spec §1's "thin layers"
// exclusion of transport concerns), so the only real exporter is the
// stdout trace exporter used for local debugging and tests.
type TracerConfig struct {
	Enabled      bool
	SamplingRate float64
	ServiceName  string
}

// InitGlobalTracer installs a TracerProvider and returns it, per the
// teacher's InitGlobalTracer. Disabled (or zero-value) config yields a
// no-op provider so instrumentation call sites never need a nil check.
func InitGlobalTracer(ctx context.Context, cfg TracerConfig) (trace.TracerProvider, error) {
	if !cfg.Enabled {
		return noop.NewTracerProvider(), nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("observability: new stdout exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("observability: new resource: %w", err)
	}

	rate := cfg.SamplingRate
	if rate <= 0 {
		rate = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(rate)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// GetTracer returns the named tracer off the global provider, per the
// teacher's GetTracer.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
