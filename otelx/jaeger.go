package otelx

import (
	"context"

	"go.opentelemetry.io/contrib/samplers/jaegerremote"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SetupJaegerTracer exports spans to a Jaeger collector over OTLP/HTTP. Sampling follows
// the strategies served by the collector, starting from the configured ratio.
func SetupJaegerTracer(ctx context.Context, c *TracerConfig) (*sdktrace.TracerProvider, shutdownFunc, error) {
	exp, err := newTraceExporter(ctx, OTLPConfig{
		Protocol:  "http",
		ServerURL: c.Providers.Jaeger.ServerURL,
		Insecure:  c.Providers.Jaeger.Insecure,
	})
	if err != nil {
		return nil, nil, err
	}

	sampling := c.Providers.Jaeger.Sampling
	opts := []jaegerremote.Option{
		jaegerremote.WithInitialSampler(sdktrace.TraceIDRatioBased(sampling.TraceIdRatio)),
	}
	if sampling.ServerURL != "" {
		opts = append(opts, jaegerremote.WithSamplingServerURL(sampling.ServerURL))
	}
	if sampling.RefreshInterval > 0 {
		opts = append(opts, jaegerremote.WithSamplingRefreshInterval(sampling.RefreshInterval))
	}
	sampler := jaegerremote.New(c.ServiceName, opts...)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(newResource(c.ServiceName, c.ResourceAttributes)),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	return tp, func(context.Context) error {
		sampler.Close()
		return nil
	}, nil
}
