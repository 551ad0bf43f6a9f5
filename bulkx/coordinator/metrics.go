package coordinator

import (
	"context"
	"time"

	"github.com/clinia/xbulk/bulkx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/clinia/xbulk/bulkx/coordinator"

type metrics struct {
	items      metric.Int64Counter
	duration   metric.Float64Histogram
	retries    metric.Int64Counter
	autoCreate metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(meterName)

	items, err := meter.Int64Counter("bulk.items",
		metric.WithDescription("Bulk items processed, by operation type and outcome."))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("bulk.duration",
		metric.WithDescription("Time taken to execute a bulk request."),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter("bulk.block_retries",
		metric.WithDescription("Bulk executions that waited for a write block to clear."))
	if err != nil {
		return nil, err
	}
	autoCreate, err := meter.Int64Counter("bulk.auto_create",
		metric.WithDescription("Indices created automatically before a bulk request, by outcome."))
	if err != nil {
		return nil, err
	}

	return &metrics{
		items:      items,
		duration:   duration,
		retries:    retries,
		autoCreate: autoCreate,
	}, nil
}

func (m *metrics) recordResponse(ctx context.Context, resp *bulkx.BulkResponse, elapsed time.Duration) {
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000)
	for _, item := range resp.Items {
		outcome := "failed"
		if !item.IsFailed() {
			outcome = string(item.Result.Result)
		}
		m.items.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op_type", item.OpType.String()),
			attribute.String("outcome", outcome),
		))
	}
}

func (m *metrics) recordAutoCreate(ctx context.Context, err error) {
	outcome := "created"
	if err != nil {
		outcome = "failed"
	}
	m.autoCreate.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
