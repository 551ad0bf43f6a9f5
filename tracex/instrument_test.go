package tracex

import (
	"context"
	"encoding/json"
	"testing"

	loggerxtest "github.com/clinia/xbulk/loggerx/test"
	"github.com/clinia/xbulk/otelx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestComponentName(t *testing.T) {
	t.Run("should return component name", func(t *testing.T) {
		assert.Equal(t, "coordinator.Coordinator", ComponentName("coordinator", "Coordinator"))
	})
}

func TestInstrument(t *testing.T) {
	l, buf := loggerxtest.NewTestLoggerWithJSONBuffer(t)
	tracer := otelx.NewNoopTracer("test")

	t.Run("should return instrumentation outputs", func(t *testing.T) {
		ctx, span, logger := Instrument(context.Background(), l, tracer, "coordinator.Coordinator", "route", trace.WithAttributes(attribute.Bool("test", true)))
		defer span.End()
		assert.Equal(t, span, trace.SpanFromContext(ctx))
		assert.NotSame(t, l, logger)

		logger.Info(ctx, "test message")

		var logEntry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))

		assert.Equal(t, "test message", logEntry["msg"])
		assert.Equal(t, true, logEntry["test"])
		assert.Equal(t, "coordinator.Coordinator.route", logEntry["component"])
	})
}
