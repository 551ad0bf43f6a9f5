// Package coordinator executes bulk requests: it runs ingest pipelines, creates missing
// indices, routes every item to its shard, dispatches one request per shard and collects
// the item results in request order.
package coordinator

import (
	"context"
	"time"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/bulkx/ingest"
	"github.com/clinia/xbulk/bulkx/routing"
	"github.com/clinia/xbulk/bulkx/shard"
	"github.com/clinia/xbulk/clusterx"
	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/loggerx"
	"github.com/clinia/xbulk/mathx"
	"github.com/clinia/xbulk/otelx"
	"github.com/clinia/xbulk/tracex"
	"github.com/clinia/xbulk/utilx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const componentName = "coordinator.Coordinator"

// IndexCreator creates the indices missing for a bulk request. Creating an index that
// already exists must fail with an already exists error.
type IndexCreator interface {
	CreateIndex(ctx context.Context, name string, timeout time.Duration) error
}

type Option func(*Coordinator)

// WithIngest replaces the executor of ingest pipelines. By default no pipeline exists.
func WithIngest(exec ingest.Executor) Option {
	return func(c *Coordinator) {
		c.ingest = exec
	}
}

// WithIndexCreator replaces the creator of missing indices, which defaults to the cluster
// service.
func WithIndexCreator(creator IndexCreator) Option {
	return func(c *Coordinator) {
		c.creator = creator
	}
}

// WithAutoCreatePolicy sets which missing indices are created. Every index is by default.
func WithAutoCreatePolicy(p *routing.AutoCreatePolicy) Option {
	return func(c *Coordinator) {
		c.autoCreate = p
	}
}

// WithAutoCreateRetry sets how many times a create failing with an unavailable error is
// attempted, and the initial wait between attempts. attempts is kept within [1, 10].
func WithAutoCreateRetry(attempts int, interval time.Duration) Option {
	return func(c *Coordinator) {
		c.createAttempts = mathx.Clamp(attempts, 1, 10)
		c.createInterval = interval
	}
}

func WithIDGeneration(allow bool) Option {
	return func(c *Coordinator) {
		c.routingOpts = append(c.routingOpts, routing.WithIDGeneration(allow))
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(c *Coordinator) {
		c.routingOpts = append(c.routingOpts, routing.WithIDGenerator(gen))
	}
}

func WithTracer(t *otelx.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = t
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Coordinator) {
		c.meterProvider = mp
	}
}

// WithClock replaces the clock used to measure took times.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// Coordinator executes bulk requests against the topology of a cluster service.
type Coordinator struct {
	l          *loggerx.Logger
	cluster    *clusterx.Service
	dispatcher shard.Dispatcher

	ingest         ingest.Executor
	creator        IndexCreator
	autoCreate     *routing.AutoCreatePolicy
	createAttempts int
	createInterval time.Duration
	routingOpts    []routing.Option

	tracer        *otelx.Tracer
	meterProvider metric.MeterProvider
	metrics       *metrics
	now           func() time.Time
}

func New(l *loggerx.Logger, cluster *clusterx.Service, dispatcher shard.Dispatcher, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		l:              l,
		cluster:        cluster,
		dispatcher:     dispatcher,
		ingest:         ingest.NewService(l),
		creator:        cluster,
		autoCreate:     utilx.Must(routing.ParseAutoCreatePolicy("true")),
		createAttempts: 3,
		createInterval: 100 * time.Millisecond,
		tracer:         otelx.NewNoopTracer(componentName),
		meterProvider:  noop.NewMeterProvider(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	m, err := newMetrics(c.meterProvider)
	if err != nil {
		return nil, errorx.InternalErrorf("failed to create bulk metrics: %s", err.Error()).WithOriginalError(err)
	}
	c.metrics = m
	return c, nil
}

func (c *Coordinator) instrument(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span, *loggerx.Logger) {
	return tracex.Instrument(ctx, c.l, c.tracer, componentName, name, opts...)
}

// Execute runs req and returns one item response per item, in request order. Item failures
// are reported in the response. An error is returned only when the request as a whole
// could not run: it is invalid, the cluster is blocked for writes or the ingest stage
// failed. Execute takes ownership of req; its items are rewritten while routing.
func (c *Coordinator) Execute(ctx context.Context, req *bulkx.BulkRequest) (resp *bulkx.BulkResponse, err error) {
	ctx, span, l := c.instrument(ctx, "Execute", trace.WithAttributes(attribute.Int("bulk.items", req.NumberOfActions())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Bool("bulk.errors", resp.HasFailures()))
		}
		span.End()
	}()

	start := c.now()
	if err := req.Validate(); err != nil {
		l.Debug(ctx, "rejecting invalid bulk request", attribute.String("error", err.Error()))
		return nil, err
	}

	if req.HasIndexRequestsWithPipelines() {
		resp, err = c.executeIngest(ctx, req)
	} else {
		resp, err = c.execute(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	c.metrics.recordResponse(ctx, resp, c.now().Sub(start))
	return resp, nil
}

// executeIngest runs the pipelines of req, then executes the items that went through
// them. Items failing in a pipeline are answered without being routed.
func (c *Coordinator) executeIngest(ctx context.Context, req *bulkx.BulkRequest) (*bulkx.BulkResponse, error) {
	ctx, span, l := c.instrument(ctx, "ingest")
	defer span.End()

	start := c.now()
	modifier := ingest.NewRequestModifier(req)
	err := c.ingest.ExecuteBulk(ctx, modifier, func(_ *bulkx.IndexOp, err error) {
		modifier.MarkCurrentItemAsFailed(err)
	})
	if err != nil {
		l.WithError(err).Error(ctx, "failed to execute pipeline for a bulk request")
		span.RecordError(err)
		return nil, err
	}
	ingestTook := c.now().Sub(start).Milliseconds()

	next := modifier.BulkRequest()
	if len(next.Items) == 0 {
		return modifier.WrapResponse(ingestTook, nil), nil
	}

	resp, err := c.execute(ctx, next)
	if err != nil {
		return nil, err
	}
	return modifier.WrapResponse(ingestTook, resp), nil
}

// execute creates the missing indices of req then runs the bulk operation.
func (c *Coordinator) execute(ctx context.Context, req *bulkx.BulkRequest) (*bulkx.BulkResponse, error) {
	op := newBulkOperation(c, req)

	createErrs := c.autoCreateIndices(ctx, op)

	resp, err := op.run(ctx)
	if err != nil {
		if ie, ok := bulkx.AsItemError(err); ok && len(createErrs) > 0 {
			return nil, ie.WithSuppressed(createErrs...)
		}
		return nil, err
	}
	return resp, nil
}
