package otelx

import (
	"github.com/clinia/xbulk/errorx"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func SetupStdoutTracer(c *TracerConfig) (*sdktrace.TracerProvider, error) {
	opts := []stdouttrace.Option{}
	if c.Providers.Stdout.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	if c.Providers.Stdout.Writer != nil {
		opts = append(opts, stdouttrace.WithWriter(c.Providers.Stdout.Writer))
	}

	exp, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, errorx.InternalErrorf("failed to create stdout trace exporter: %s", err.Error()).WithOriginalError(err)
	}

	// Spans are written synchronously so that nothing is lost on exit.
	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(newResource(c.ServiceName, c.ResourceAttributes)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}

func SetupStdoutMeterProvider(c *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []stdoutmetric.Option{}
	if c.Providers.Stdout.Pretty {
		opts = append(opts, stdoutmetric.WithPrettyPrint())
	}
	if c.Providers.Stdout.Writer != nil {
		opts = append(opts, stdoutmetric.WithWriter(c.Providers.Stdout.Writer))
	}

	exp, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, errorx.InternalErrorf("failed to create stdout metric exporter: %s", err.Error()).WithOriginalError(err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(newResource(c.ServiceName, c.ResourceAttributes)),
	), nil
}
