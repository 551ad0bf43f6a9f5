package shard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/bulkx/update"
	"github.com/clinia/xbulk/loggerx"
	"github.com/clinia/xbulk/retryx"
	"go.opentelemetry.io/otel/attribute"
)

// Item is an operation together with its position in the bulk request.
type Item struct {
	ID int
	Op bulkx.Op
}

// Request is the part of a bulk request routed to one shard, in request order.
type Request struct {
	Shard               bulkx.ShardID
	Items               []Item
	Timeout             time.Duration
	WaitForActiveShards bulkx.ActiveShardCount
	Refresh             bulkx.RefreshPolicy
}

type Response struct {
	Shard bulkx.ShardID
	Items []*bulkx.ItemResponse
}

// Executor applies shard requests to an engine. Items are applied in order and a failed
// item never stops the following ones.
type Executor struct {
	l        *loggerx.Logger
	engine   Engine
	resolver *update.Resolver
}

func NewExecutor(l *loggerx.Logger, engine Engine, resolver *update.Resolver) *Executor {
	return &Executor{l: l, engine: engine, resolver: resolver}
}

func (e *Executor) Execute(ctx context.Context, req *Request) (*Response, error) {
	resp := &Response{Shard: req.Shard, Items: make([]*bulkx.ItemResponse, 0, len(req.Items))}
	forcedRefresh := req.Refresh == bulkx.RefreshImmediate

	for _, item := range req.Items {
		if err := ctx.Err(); err != nil {
			resp.Items = append(resp.Items, e.failed(item, req.Shard, bulkx.TimeoutError("shard %s timed out after [%s]", req.Shard, req.Timeout)))
			continue
		}

		var (
			result *bulkx.WriteResult
			err    error
		)
		switch op := item.Op.(type) {
		case *bulkx.IndexOp:
			result, err = e.index(ctx, req.Shard, op, NoPrecondition)
		case *bulkx.DeleteOp:
			result, err = e.delete(ctx, req.Shard, op, NoPrecondition)
		case *bulkx.UpdateOp:
			result, err = e.update(ctx, req.Shard, op)
		}
		if err != nil {
			resp.Items = append(resp.Items, e.failed(item, req.Shard, err))
			continue
		}
		result.ForcedRefresh = forcedRefresh && result.Result != bulkx.OutcomeNoop
		resp.Items = append(resp.Items, bulkx.NewSuccessItem(item.ID, item.Op.OpType(), result))
	}

	if req.Refresh != bulkx.RefreshNone {
		if err := e.engine.Refresh(ctx, req.Shard); err != nil {
			e.l.WithError(err).Warn(ctx, "failed to refresh shard", attribute.String("shard", req.Shard.String()))
		}
	}
	return resp, nil
}

func (e *Executor) failed(item Item, shard bulkx.ShardID, err error) *bulkx.ItemResponse {
	return bulkx.NewFailedItem(item.ID, item.Op, bulkx.ForItem(err, shard.Index, item.Op.DocID()))
}

func (e *Executor) index(ctx context.Context, shard bulkx.ShardID, op *bulkx.IndexOp, pre Precondition) (*bulkx.WriteResult, error) {
	out, err := e.engine.Index(ctx, shard, op, pre)
	if err != nil {
		return nil, err
	}
	outcome := bulkx.OutcomeUpdated
	if out.Created {
		outcome = bulkx.OutcomeCreated
	}
	return writeResult(shard, op, out, outcome), nil
}

func (e *Executor) delete(ctx context.Context, shard bulkx.ShardID, op *bulkx.DeleteOp, pre Precondition) (*bulkx.WriteResult, error) {
	out, err := e.engine.Delete(ctx, shard, op, pre)
	if err != nil {
		return nil, err
	}
	return writeResult(shard, op, out, bulkx.OutcomeDeleted), nil
}

// update resolves op against the current document and applies the result, starting over
// on version conflicts up to op.RetryOnConflict times.
func (e *Executor) update(ctx context.Context, shard bulkx.ShardID, op *bulkx.UpdateOp) (*bulkx.WriteResult, error) {
	var result *bulkx.WriteResult
	attempt := 0
	err := retryx.ImmediateRetry(func() error {
		attempt++
		snap, err := e.engine.Get(ctx, shard, op.ID)
		if err != nil {
			return backoff.Permanent(err)
		}
		res, err := e.resolver.Prepare(ctx, shard, op, snap)
		if err != nil {
			return backoff.Permanent(err)
		}

		switch a := res.Action.(type) {
		case *update.ToIndex:
			result, err = e.index(ctx, shard, a.Op, Precondition{IfSeqNo: a.IfSeqNo, IfPrimaryTerm: a.IfPrimaryTerm})
			if err == nil {
				source := res.UpdatedSource
				if source == nil {
					source = decode(a.Op.Source)
				}
				result.Result = res.Outcome
				result.Get = update.ExtractGetResult(op, source)
			}
		case *update.ToDelete:
			result, err = e.delete(ctx, shard, a.Op, Precondition{IfSeqNo: a.IfSeqNo, IfPrimaryTerm: a.IfPrimaryTerm})
			if err == nil {
				result.Get = update.ExtractGetResult(op, res.UpdatedSource)
			}
		case *update.ToNoOp:
			result = &bulkx.WriteResult{
				Index:   shard.Index,
				Type:    op.Type,
				ID:      op.ID,
				Version: a.Version,
				SeqNo:   bulkx.UnassignedSeqNo,
				Result:  bulkx.OutcomeNoop,
				Shards:  &bulkx.ShardInfo{},
				Get:     update.ExtractGetResult(op, res.UpdatedSource),
			}
		}
		if err != nil {
			if bulkx.KindOf(err) == bulkx.KindVersionConflict {
				e.l.Debug(ctx, "version conflict while applying update",
					attribute.String("shard", shard.String()),
					attribute.String("id", op.ID),
					attribute.Int("attempt", attempt),
				)
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}, retryx.WithRetryCount(op.RetryOnConflict+1), retryx.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func writeResult(shard bulkx.ShardID, op bulkx.Op, out *WriteOutcome, outcome bulkx.Outcome) *bulkx.WriteResult {
	return &bulkx.WriteResult{
		Index:       shard.Index,
		Type:        op.TypeName(),
		ID:          op.DocID(),
		Version:     out.Version,
		SeqNo:       out.SeqNo,
		PrimaryTerm: out.PrimaryTerm,
		Result:      outcome,
		Shards:      &bulkx.ShardInfo{Total: 1, Successful: 1},
	}
}

func decode(raw json.RawMessage) map[string]any {
	m := map[string]any{}
	_ = json.Unmarshal(raw, &m)
	return m
}
