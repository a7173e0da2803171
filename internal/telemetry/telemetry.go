// Package telemetry provides ambient tracing and metrics for the memory
// engine's long-running operations (retain, recall, consolidate, the async
// registry) using go.opentelemetry.io/otel with the stdout trace/metric
// exporters, mirroring how steveyegge-beads wires OpenTelemetry without a
// network collector (SPEC_FULL.md's Non-goals rule out any distributed
// surface, so a local exporter is the right fit rather than an OTLP
// collector endpoint).
package telemetry

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Shutdown flushes and releases the exporters started by Init.
type Shutdown func(context.Context) error

// Init wires the global tracer and meter providers to stdout exporters
// writing to out, and registers them with otel's global registry so
// ForComponent (called from retain/recall/consolidate/asyncop) picks them
// up without those packages depending on this function directly. Callers
// that don't want telemetry at all (tests, for instance) simply
// never call Init: otel's built-in no-op providers remain installed, so
// every StartSpan/AddOperation call below stays cheap and side-effect-free.
func Init(out io.Writer) (Shutdown, error) {
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, err
	}
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(out))
	if err != nil {
		return nil, err
	}
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
	otel.SetMeterProvider(meterProvider)

	return func(ctx context.Context) error {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			return err
		}
		return meterProvider.Shutdown(ctx)
	}, nil
}

// Instrumentation is a per-component tracer+counter bundle. Each long-running
// component (retain, recall, consolidate, asyncop) builds one via
// ForComponent at construction time instead of repeating otel boilerplate
// at every call site.
type Instrumentation struct {
	tracer     trace.Tracer
	operations metric.Int64Counter
}

// ForComponent returns an Instrumentation scoped to component, reading
// whatever tracer/meter providers are currently registered globally (set by
// Init, or otel's no-op defaults otherwise).
func ForComponent(component string) Instrumentation {
	tracer := otel.Tracer("memoryengine/" + component)
	meter := otel.Meter("memoryengine/" + component)
	counter, _ := meter.Int64Counter(
		component+".operations",
		metric.WithDescription("count of "+component+" operations completed"),
	)
	return Instrumentation{tracer: tracer, operations: counter}
}

// StartSpan starts a child span named name under ctx.
func (i Instrumentation) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, name)
}

// AddOperation increments the component's operation counter, tagged with
// kind (a fact type, link type, or operation type depending on caller).
func (i Instrumentation) AddOperation(ctx context.Context, kind string) {
	if i.operations == nil {
		return
	}
	i.operations.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
