package otelx

import (
	"github.com/clinia/xbulk/errorx"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// SetupPrometheusMeterProvider registers the measurements as Prometheus collectors. They
// are served by whatever handler exposes the registerer, usually promhttp on /metrics.
func SetupPrometheusMeterProvider(c *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otelprom.Option{}
	if r := c.Providers.Prometheus.Registerer; r != nil {
		opts = append(opts, otelprom.WithRegisterer(r))
	}
	if ns := c.Providers.Prometheus.Namespace; ns != "" {
		opts = append(opts, otelprom.WithNamespace(ns))
	}

	exporter, err := otelprom.New(opts...)
	if err != nil {
		return nil, errorx.InternalErrorf("failed to create prometheus exporter: %s", err.Error()).WithOriginalError(err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(newResource(c.ServiceName, c.ResourceAttributes)),
	), nil
}
