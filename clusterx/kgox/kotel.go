package kgox

import (
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func newKotel(tracerProvider trace.TracerProvider, propagator propagation.TextMapPropagator, meterProvider metric.MeterProvider) *kotel.Kotel {
	tr := kotel.NewTracer(
		kotel.TracerProvider(tracerProvider),
		kotel.TracerPropagator(propagator),
	)
	m := kotel.NewMeter(kotel.MeterProvider(meterProvider))
	return kotel.NewKotel(kotel.WithTracer(tr), kotel.WithMeter(m))
}
