package otelx

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Meter holds the meter provider of the process and the function flushing it.
type Meter struct {
	provider metric.MeterProvider
	shutdown shutdownFunc
}

func NewNoopMeter() *Meter {
	return &Meter{provider: noop.NewMeterProvider()}
}

// IsLoaded returns true if the meter has been loaded.
func (m *Meter) IsLoaded() bool {
	if m == nil || m.provider == nil {
		return false
	}
	return true
}

// Meter returns a named meter of the provider.
func (m *Meter) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return m.provider.Meter(name, opts...)
}

func (m *Meter) Provider() metric.MeterProvider {
	return m.provider
}

// Shutdown flushes the pending measurements and stops the exporters.
func (m *Meter) Shutdown(ctx context.Context) error {
	if m.shutdown == nil {
		return nil
	}
	return m.shutdown(ctx)
}
