package otelx

import (
	"context"

	"github.com/clinia/xbulk/errorx"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
)

const userAgent = "xbulk-otel-exporter"

func SetupOTLPTracer(ctx context.Context, c *TracerConfig) (*sdktrace.TracerProvider, error) {
	exp, err := newTraceExporter(ctx, c.Providers.OTLP)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(newResource(c.ServiceName, c.ResourceAttributes)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(
			c.Providers.OTLP.Sampling.SamplingRatio,
		))),
	), nil
}

func newTraceExporter(ctx context.Context, c OTLPConfig) (*otlptrace.Exporter, error) {
	switch c.Protocol {
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(c.ServerURL)}
		if c.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
		if err != nil {
			return nil, errorx.InternalErrorf("failed to create trace exporter: %s", err.Error()).WithOriginalError(err)
		}
		return exp, nil
	case "grpc":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(c.ServerURL),
			otlptracegrpc.WithDialOption(grpc.WithUserAgent(userAgent)),
		}
		if c.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, errorx.InternalErrorf("failed to create trace exporter: %s", err.Error()).WithOriginalError(err)
		}
		return exp, nil
	default:
		return nil, errorx.InvalidArgumentErrorf("unknown protocol: %s", c.Protocol)
	}
}

func SetupOTLPMeterProvider(ctx context.Context, c *MeterConfig) (*sdkmetric.MeterProvider, error) {
	exp, err := newMetricExporter(ctx, c.Providers.OTLP)
	if err != nil {
		return nil, err
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if c.Providers.OTLP.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(c.Providers.OTLP.Interval))
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, readerOpts...)),
		sdkmetric.WithResource(newResource(c.ServiceName, c.ResourceAttributes)),
	), nil
}

func newMetricExporter(ctx context.Context, c OTLPMeterConfig) (sdkmetric.Exporter, error) {
	switch c.Protocol {
	case "http":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(c.ServerURL)}
		if c.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, errorx.InternalErrorf("failed to create metric exporter: %s", err.Error()).WithOriginalError(err)
		}
		return exp, nil
	case "grpc":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(c.ServerURL),
			otlpmetricgrpc.WithDialOption(grpc.WithUserAgent(userAgent)),
		}
		if c.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, errorx.InternalErrorf("failed to create metric exporter: %s", err.Error()).WithOriginalError(err)
		}
		return exp, nil
	default:
		return nil, errorx.InvalidArgumentErrorf("unknown protocol: %s", c.Protocol)
	}
}
