package otelx

import (
	"context"

	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/loggerx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Tracer struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	shutdown   shutdownFunc
}

// NewTracer creates the tracer of the configured provider. An empty provider gives a
// no-op tracer.
func NewTracer(ctx context.Context, l *loggerx.Logger, c *TracerConfig) (*Tracer, error) {
	t := &Tracer{propagator: NewPropagator()}
	if err := t.setup(ctx, l, c); err != nil {
		return nil, err
	}
	return t, nil
}

// NewNoopTracer creates a tracer that records nothing but still propagates context.
func NewNoopTracer(name string) *Tracer {
	return &Tracer{
		tracer:     noop.NewTracerProvider().Tracer(name),
		propagator: NewPropagator(),
	}
}

// setup constructs the tracer based on the given configuration.
func (t *Tracer) setup(ctx context.Context, l *loggerx.Logger, c *TracerConfig) error {
	var (
		tp       *sdktrace.TracerProvider
		shutdown shutdownFunc
		err      error
	)

	switch c.Provider {
	case "jaeger":
		tp, shutdown, err = SetupJaegerTracer(ctx, c)
		if err != nil {
			return err
		}
		l.Info(ctx, "Jaeger tracer configured", attribute.String("server_url", c.Providers.Jaeger.ServerURL))
	case "otel":
		tp, err = SetupOTLPTracer(ctx, c)
		if err != nil {
			return err
		}
		l.Info(ctx, "OTLP tracer configured", attribute.String("server_url", c.Providers.OTLP.ServerURL))
	case "stdout":
		tp, err = SetupStdoutTracer(c)
		if err != nil {
			return err
		}
		l.Info(ctx, "Stdout tracer configured")
	case "":
		l.Info(ctx, "Missing provider in config, skipping tracing setup")
		t.tracer = noop.NewTracerProvider().Tracer(c.Name)
		return nil
	default:
		return errorx.InvalidArgumentErrorf("unknown tracer provider [%s]", c.Provider)
	}

	t.tracer = tp.Tracer(c.Name)
	t.shutdown = joinShutdown(tp.Shutdown, shutdown)
	return nil
}

// IsLoaded returns true if the tracer has been loaded.
func (t *Tracer) IsLoaded() bool {
	if t == nil || t.tracer == nil {
		return false
	}
	return true
}

// Tracer returns the underlying OpenTelemetry tracer.
func (t *Tracer) Tracer() trace.Tracer {
	return t.tracer
}

// Provider returns a TracerProvider which in turn yields this tracer unmodified.
func (t *Tracer) Provider() trace.TracerProvider {
	return tracerProvider{t: t.Tracer()}
}

type tracerProvider struct {
	noop.TracerProvider
	t trace.Tracer
}

var _ trace.TracerProvider = tracerProvider{}

// Tracer implements trace.TracerProvider.
func (tp tracerProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return tp.t
}

// TextMapPropagator returns the underlying OpenTelemetry textMapPropagator.
func (t *Tracer) TextMapPropagator() propagation.TextMapPropagator {
	return t.propagator
}

// Inject sets the trace context of ctx into the carrier.
func (t *Tracer) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	t.propagator.Inject(ctx, carrier)
}

// Extract reads the trace context from the carrier into a returned Context.
func (t *Tracer) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return t.propagator.Extract(ctx, carrier)
}

// Shutdown flushes the pending spans and stops the exporters.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}
