// Package otelx builds the OpenTelemetry tracer and meter providers from configuration.
package otelx

import (
	"context"
	"errors"

	"go.opentelemetry.io/contrib/propagators/b3"
	jaegerprop "go.opentelemetry.io/contrib/propagators/jaeger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// NewPropagator reads and writes W3C trace context and baggage, B3 and Jaeger headers.
func NewPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
		b3.New(b3.WithInjectEncoding(b3.B3MultipleHeader)),
		jaegerprop.Jaeger{},
	)
}

func newResource(serviceName string, attrs []attribute.KeyValue) *resource.Resource {
	atts := append([]attribute.KeyValue{semconv.ServiceName(serviceName)}, attrs...)
	return resource.NewWithAttributes(semconv.SchemaURL, atts...)
}

type shutdownFunc func(ctx context.Context) error

func joinShutdown(fns ...shutdownFunc) shutdownFunc {
	return func(ctx context.Context) error {
		var errs []error
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}
}
