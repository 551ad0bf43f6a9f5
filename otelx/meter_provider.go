package otelx

import (
	"context"

	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/loggerx"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// NewMeter creates the meter provider of the configured provider. An empty provider gives
// a no-op meter.
func NewMeter(ctx context.Context, l *loggerx.Logger, c *MeterConfig) (*Meter, error) {
	var (
		mp  *sdkmetric.MeterProvider
		err error
	)

	switch c.Provider {
	case "prometheus":
		if mp, err = SetupPrometheusMeterProvider(c); err != nil {
			return nil, err
		}
		l.Info(ctx, "Prometheus meter configured, exposing measurements on the metrics endpoint")
	case "otel":
		if mp, err = SetupOTLPMeterProvider(ctx, c); err != nil {
			return nil, err
		}
		l.Info(ctx, "OTLP meter configured", attribute.String("server_url", c.Providers.OTLP.ServerURL))
	case "stdout":
		if mp, err = SetupStdoutMeterProvider(c); err != nil {
			return nil, err
		}
		l.Info(ctx, "Stdout meter configured")
	case "":
		l.Info(ctx, "Missing provider in config, skipping meter setup")
		return NewNoopMeter(), nil
	default:
		return nil, errorx.InvalidArgumentErrorf("unknown meter provider [%s]", c.Provider)
	}

	return &Meter{provider: mp, shutdown: mp.Shutdown}, nil
}
