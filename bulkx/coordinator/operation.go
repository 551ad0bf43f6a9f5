package coordinator

import (
	"context"
	"sync/atomic"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/bulkx/routing"
	"github.com/clinia/xbulk/bulkx/shard"
	"github.com/clinia/xbulk/clusterx"
	"github.com/clinia/xbulk/errorx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// bulkOperation is one execution of a bulk request. Every item ends up with exactly one
// response in slots, either from routing or from its shard.
type bulkOperation struct {
	c     *Coordinator
	req   *bulkx.BulkRequest
	start int64

	// items holds the items still to route. An item is set to nil once its slot is filled.
	items        []bulkx.Op
	slots        []*bulkx.ItemResponse
	cannotCreate map[string]error
}

func newBulkOperation(c *Coordinator, req *bulkx.BulkRequest) *bulkOperation {
	items := make([]bulkx.Op, len(req.Items))
	copy(items, req.Items)
	return &bulkOperation{
		c:            c,
		req:          req,
		start:        c.now().UnixMilli(),
		items:        items,
		slots:        make([]*bulkx.ItemResponse, len(req.Items)),
		cannotCreate: map[string]error{},
	}
}

func (o *bulkOperation) fail(i int, err error) {
	op := o.items[i]
	o.slots[i] = bulkx.NewFailedItem(i, op, bulkx.ForItem(err, op.IndexName(), op.DocID()))
	o.items[i] = nil
}

// failIndex fails every pending item targeting index.
func (o *bulkOperation) failIndex(index string, err error) {
	for i, op := range o.items {
		if op != nil && op.IndexName() == index {
			o.fail(i, err)
		}
	}
}

// run waits out retryable global blocks, routes the items and executes one request per
// shard. It returns an error only when the whole batch is rejected.
func (o *bulkOperation) run(ctx context.Context) (*bulkx.BulkResponse, error) {
	ctx, span, l := o.c.instrument(ctx, "run")
	defer span.End()

	observer := clusterx.NewObserver(o.c.cluster, o.req.Timeout)
	for {
		state := observer.ObservedState()
		blockErr := state.Blocks.GlobalBlockedError(clusterx.BlockLevelWrite)
		if blockErr == nil {
			return o.dispatch(ctx, o.route(state))
		}
		if !errorx.IsUnavailableError(blockErr) || observer.IsTimedOut() {
			l.Debug(ctx, "rejecting bulk request on cluster block", attribute.String("error", blockErr.Error()))
			return nil, blockErr
		}

		o.c.metrics.retries.Add(ctx, 1)
		l.Debug(ctx, "cluster is blocked, waiting for a topology change",
			attribute.String("error", blockErr.Error()),
			attribute.Int64("cluster.version", state.Version),
		)
		if observer.WaitForNextChange(ctx) == clusterx.Closed {
			return nil, bulkx.NodeClosedError().WithSuppressed(blockErr)
		}
	}
}

type shardGroup struct {
	shard bulkx.ShardID
	items []shard.Item
}

// route resolves the concrete index and shard of every pending item against state and
// groups the items by shard, in order of first appearance.
func (o *bulkOperation) route(state *clusterx.State) []*shardGroup {
	resolver := routing.NewResolver(state, o.c.routingOpts...)

	var groups []*shardGroup
	byShard := map[bulkx.ShardID]*shardGroup{}
	for i, op := range o.items {
		if op == nil {
			continue
		}
		if err, ok := o.cannotCreate[op.IndexName()]; ok {
			o.fail(i, err)
			continue
		}

		alias := op.IndexName()
		concrete, err := resolver.ResolveIfAbsent(op)
		if err != nil {
			o.fail(i, err)
			continue
		}
		if blockErr := state.Blocks.IndexBlockedError(clusterx.BlockLevelWrite, concrete); blockErr != nil {
			o.fail(i, blockErr)
			continue
		}
		if err := resolver.ResolveRouting(op, alias, concrete); err != nil {
			o.fail(i, err)
			continue
		}
		sid, err := resolver.Shard(concrete, op.DocID(), op.RoutingKey())
		if err != nil {
			o.fail(i, err)
			continue
		}

		g, ok := byShard[sid]
		if !ok {
			g = &shardGroup{shard: sid}
			byShard[sid] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, shard.Item{ID: i, Op: op})
	}
	return groups
}

// dispatch sends every group to its shard concurrently. The response is built once the
// last shard answered.
func (o *bulkOperation) dispatch(ctx context.Context, groups []*shardGroup) (*bulkx.BulkResponse, error) {
	if len(groups) == 0 {
		return o.finish()
	}

	done := make(chan struct{})
	var pending atomic.Int32
	pending.Store(int32(len(groups)))

	for _, g := range groups {
		go func() {
			o.executeShard(ctx, g)
			if pending.Add(-1) == 0 {
				close(done)
			}
		}()
	}
	<-done
	return o.finish()
}

func (o *bulkOperation) executeShard(ctx context.Context, g *shardGroup) {
	ctx, span, l := o.c.instrument(ctx, "executeShard",
		trace.WithAttributes(
			attribute.String("bulk.shard", g.shard.String()),
			attribute.Int("bulk.items", len(g.items)),
		),
	)
	defer span.End()

	resp, err := o.c.dispatcher.Dispatch(ctx, &shard.Request{
		Shard:               g.shard,
		Items:               g.items,
		Timeout:             o.req.Timeout,
		WaitForActiveShards: o.req.WaitForActiveShards,
		Refresh:             o.req.Refresh,
	})
	if err == nil && resp == nil {
		err = bulkx.TransportError(g.shard.String(), errorx.InternalErrorf("shard returned no response"))
	}
	if err != nil {
		l.WithError(err).Warn(ctx, "failed to execute shard request", attribute.String("shard", g.shard.String()))
		span.RecordError(err)
		for _, it := range g.items {
			o.slots[it.ID] = bulkx.NewFailedItem(it.ID, it.Op, bulkx.ForItem(err, g.shard.Index, it.Op.DocID()))
		}
		return
	}

	answered := make(map[int]*bulkx.ItemResponse, len(resp.Items))
	for _, item := range resp.Items {
		if item != nil {
			answered[item.ItemID] = item
		}
	}
	for _, it := range g.items {
		if item, ok := answered[it.ID]; ok {
			o.slots[it.ID] = item
			continue
		}
		missing := bulkx.TransportError(g.shard.String(), errorx.InternalErrorf("shard response has no item [%d]", it.ID))
		l.Warn(ctx, "shard response is missing an item",
			attribute.String("shard", g.shard.String()),
			attribute.Int("item", it.ID),
		)
		o.slots[it.ID] = bulkx.NewFailedItem(it.ID, it.Op, bulkx.ForItem(missing, g.shard.Index, it.Op.DocID()))
	}
}

func (o *bulkOperation) finish() (*bulkx.BulkResponse, error) {
	took := o.c.now().UnixMilli() - o.start
	return bulkx.Aggregate(o.slots, took, bulkx.NoIngestTook)
}
