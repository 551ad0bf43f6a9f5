package tracex

import (
	"context"

	"github.com/clinia/xbulk/loggerx"
	"github.com/clinia/xbulk/otelx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const ComponentNameSeparator = "."

func ComponentName(packageName, structName string) string {
	return packageName + ComponentNameSeparator + structName
}

/*
Instrument starts a span named after the component and returns a logger carrying the span
attributes and the component name. `span.End()` must be called when done.

	const componentName = "coordinator.Coordinator"

	func (c *Coordinator) instrument(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span, *loggerx.Logger) {
		return tracex.Instrument(ctx, c.l, c.tracer, componentName, name, opts...)
	}
*/
func Instrument(ctx context.Context, l *loggerx.Logger, t *otelx.Tracer, componentName string, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span, *loggerx.Logger) {
	fullComponentName := ComponentName(componentName, name)
	ctx, span := t.Tracer().Start(ctx, fullComponentName, opts...)
	out := l.
		WithSpanStartOptions(opts...).
		WithFields(attribute.Key("component").String(fullComponentName))
	return ctx, span, out
}
