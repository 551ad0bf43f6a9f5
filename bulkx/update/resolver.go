// Package update turns an update operation into the index, delete or no-op that it
// resolves to against the current version of the document.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/loggerx"
	"github.com/spf13/cast"
	"go.opentelemetry.io/otel/attribute"
)

// ScriptExecutor runs user scripts against a context map and returns the context as the
// script left it.
type ScriptExecutor interface {
	Execute(ctx context.Context, script *bulkx.Script, vars map[string]any) (map[string]any, error)
}

// Snapshot is the stored document an update is resolved against. A nil snapshot means
// the document does not exist.
type Snapshot struct {
	Index       string
	Type        string
	ID          string
	Version     int64
	SeqNo       int64
	PrimaryTerm int64
	Routing     string
	Parent      string
	// Source is nil when the document was stored without its source.
	Source json.RawMessage
}

// Action is one of *ToIndex, *ToDelete and *ToNoOp.
type Action interface {
	isAction()
}

// ToIndex writes Op. IfSeqNo and IfPrimaryTerm are set when the write must only apply
// to the document version that was resolved against.
type ToIndex struct {
	Op            *bulkx.IndexOp
	IfSeqNo       int64
	IfPrimaryTerm int64
}

type ToDelete struct {
	Op            *bulkx.DeleteOp
	IfSeqNo       int64
	IfPrimaryTerm int64
}

// ToNoOp leaves the document untouched at Version.
type ToNoOp struct {
	Version int64
}

func (*ToIndex) isAction()  {}
func (*ToDelete) isAction() {}
func (*ToNoOp) isAction()   {}

// Result is the resolved action with the outcome to report and the source as the update
// left it, used to build the get result.
type Result struct {
	Action        Action
	Outcome       bulkx.Outcome
	UpdatedSource map[string]any
}

type Option func(*Resolver)

// WithNowProvider replaces the clock exposed to scripts as _now.
func WithNowProvider(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// Resolver is stateless. Retrying on version conflicts is up to the caller.
type Resolver struct {
	l       *loggerx.Logger
	scripts ScriptExecutor
	now     func() time.Time
}

func NewResolver(l *loggerx.Logger, scripts ScriptExecutor, opts ...Option) *Resolver {
	r := &Resolver{
		l:       l,
		scripts: scripts,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prepare resolves op against snap.
func (r *Resolver) Prepare(ctx context.Context, shard bulkx.ShardID, op *bulkx.UpdateOp, snap *Snapshot) (*Result, error) {
	if snap == nil {
		return r.prepareUpsert(ctx, shard, op)
	}
	return r.prepareUpdate(ctx, shard, op, snap)
}

func (r *Resolver) prepareUpsert(ctx context.Context, shard bulkx.ShardID, op *bulkx.UpdateOp) (*Result, error) {
	if len(op.Upsert) == 0 && !op.DocAsUpsert {
		return nil, bulkx.DocumentMissingError(shard.Index, op.Type, op.ID)
	}

	payload := op.Upsert
	if op.DocAsUpsert {
		payload = op.Doc
	}

	if op.ScriptedUpsert && op.Script != nil {
		upsertDoc, err := decodeSource(op.Upsert)
		if err != nil {
			return nil, bulkx.IllegalArgumentError("failed to parse upsert document: %s", err.Error())
		}
		sctx, err := r.execute(ctx, op.Script, map[string]any{
			"op":      "create",
			"_source": upsertDoc,
			"_now":    r.nowMillis(),
		})
		if err != nil {
			return nil, err
		}

		choice := cast.ToString(sctx["op"])
		if choice != "create" {
			if choice != "none" {
				r.l.Warn(ctx, "unsupported upsert operation in script, doing nothing",
					attribute.String("op", choice),
					attribute.String("script", op.Script.IDOrCode()),
				)
			}
			return &Result{
				Action:        &ToNoOp{Version: bulkx.NotFound},
				Outcome:       bulkx.OutcomeNoop,
				UpdatedSource: upsertDoc,
			}, nil
		}

		source, err := sourceFromContext(sctx)
		if err != nil {
			return nil, err
		}
		if payload, err = json.Marshal(source); err != nil {
			return nil, bulkx.ScriptExecutionError(err)
		}
	}

	index := bulkx.NewCreateOp(op.Index, op.ID, payload)
	index.Type = op.Type
	index.Routing = op.Routing
	index.Parent = op.Parent
	if op.VersionType != bulkx.VersionTypeInternal {
		index.Version = op.Version
		index.VersionType = op.VersionType
	}
	return &Result{
		Action:  &ToIndex{Op: index, IfSeqNo: bulkx.UnassignedSeqNo},
		Outcome: bulkx.OutcomeCreated,
	}, nil
}

func (r *Resolver) prepareUpdate(ctx context.Context, shard bulkx.ShardID, op *bulkx.UpdateOp, snap *Snapshot) (*Result, error) {
	if op.VersionType == bulkx.VersionTypeInternal && op.Version != bulkx.MatchAny && op.Version != snap.Version {
		return nil, bulkx.VersionConflictError(shard.Index, op.Type, op.ID,
			fmt.Sprintf("current version [%d] is different than the one provided [%d]", snap.Version, op.Version))
	}

	updateVersion := snap.Version
	ifSeqNo, ifPrimaryTerm := snap.SeqNo, snap.PrimaryTerm
	if op.VersionType != bulkx.VersionTypeInternal {
		updateVersion = op.Version
		ifSeqNo, ifPrimaryTerm = bulkx.UnassignedSeqNo, 0
	}

	if snap.Source == nil {
		return nil, bulkx.DocumentSourceMissingError(shard.Index, op.Type, op.ID)
	}
	source, err := decodeSource(snap.Source)
	if err != nil {
		return nil, bulkx.DocumentSourceMissingError(shard.Index, op.Type, op.ID)
	}

	routing, parent := snap.Routing, snap.Parent
	var operation string

	if op.Script == nil && len(op.Doc) > 0 {
		changes, err := decodeSource(op.Doc)
		if err != nil {
			return nil, bulkx.IllegalArgumentError("failed to parse partial document: %s", err.Error())
		}
		if op.Routing != "" {
			routing = op.Routing
		}
		if op.Parent != "" {
			parent = op.Parent
		}
		modified := Merge(source, changes, op.DetectNoop)
		if op.DetectNoop && !modified {
			operation = "none"
		}
	} else {
		sctx, err := r.execute(ctx, op.Script, map[string]any{
			"_index":   snap.Index,
			"_type":    snap.Type,
			"_id":      snap.ID,
			"_version": snap.Version,
			"_routing": nilIfEmpty(routing),
			"_parent":  nilIfEmpty(parent),
			"_source":  source,
			"_now":     r.nowMillis(),
		})
		if err != nil {
			return nil, err
		}
		if v, ok := sctx["op"]; ok && v != nil {
			operation = cast.ToString(v)
		}
		if source, err = sourceFromContext(sctx); err != nil {
			return nil, err
		}
	}

	switch operation {
	case "", "index":
		raw, err := json.Marshal(source)
		if err != nil {
			return nil, bulkx.IllegalArgumentError("failed to serialize updated source: %s", err.Error())
		}
		index := bulkx.NewIndexOp(op.Index, op.ID, raw)
		index.Type = op.Type
		index.Routing = routing
		index.Parent = parent
		index.Version = updateVersion
		index.VersionType = op.VersionType
		return &Result{
			Action:        &ToIndex{Op: index, IfSeqNo: ifSeqNo, IfPrimaryTerm: ifPrimaryTerm},
			Outcome:       bulkx.OutcomeUpdated,
			UpdatedSource: source,
		}, nil
	case "delete":
		del := bulkx.NewDeleteOp(op.Index, op.ID)
		del.Type = op.Type
		del.Routing = routing
		del.Parent = parent
		del.Version = updateVersion
		del.VersionType = op.VersionType
		return &Result{
			Action:        &ToDelete{Op: del, IfSeqNo: ifSeqNo, IfPrimaryTerm: ifPrimaryTerm},
			Outcome:       bulkx.OutcomeDeleted,
			UpdatedSource: source,
		}, nil
	case "none":
		return &Result{
			Action:        &ToNoOp{Version: snap.Version},
			Outcome:       bulkx.OutcomeNoop,
			UpdatedSource: source,
		}, nil
	default:
		r.l.Warn(ctx, "unsupported update operation in script, doing nothing",
			attribute.String("op", operation),
			attribute.String("script", op.Script.IDOrCode()),
		)
		return &Result{
			Action:        &ToNoOp{Version: snap.Version},
			Outcome:       bulkx.OutcomeNoop,
			UpdatedSource: source,
		}, nil
	}
}

func (r *Resolver) execute(ctx context.Context, script *bulkx.Script, vars map[string]any) (map[string]any, error) {
	if r.scripts == nil {
		return nil, bulkx.ScriptExecutionError(bulkx.IllegalArgumentError("scripts are disabled"))
	}
	out, err := r.scripts.Execute(ctx, script, vars)
	if err != nil {
		return nil, bulkx.ScriptExecutionError(err)
	}
	return out, nil
}

func (r *Resolver) nowMillis() int64 {
	return r.now().UnixMilli()
}

func sourceFromContext(sctx map[string]any) (map[string]any, error) {
	switch s := sctx["_source"].(type) {
	case map[string]any:
		return s, nil
	case nil:
		return map[string]any{}, nil
	default:
		return nil, bulkx.ScriptExecutionError(bulkx.IllegalArgumentError("ctx._source must be an object, found [%T]", s))
	}
}

func decodeSource(raw json.RawMessage) (map[string]any, error) {
	m := map[string]any{}
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
