package bulkx

import (
	"time"

	"github.com/samber/lo"
)

const (
	// DefaultType is the mapping type used when an action does not name one.
	DefaultType = "_doc"

	DefaultTimeout = time.Minute
)

// BulkRequest is an ordered batch of write operations. Payloads are opaque caller tags,
// kept one to one with Items.
type BulkRequest struct {
	Items               []Op
	Payloads            []any
	Timeout             time.Duration
	WaitForActiveShards ActiveShardCount
	Refresh             RefreshPolicy

	sizeInBytes int64
}

func NewBulkRequest() *BulkRequest {
	return &BulkRequest{
		Timeout:             DefaultTimeout,
		WaitForActiveShards: ActiveShardsDefault,
	}
}

// Add appends op with its payload tag.
func (r *BulkRequest) Add(op Op, payload any) *BulkRequest {
	r.Items = append(r.Items, op)
	r.Payloads = append(r.Payloads, payload)
	r.sizeInBytes += op.sizeInBytes() + 50
	return r
}

func (r *BulkRequest) NumberOfActions() int {
	return len(r.Items)
}

// EstimatedSizeInBytes approximates the memory held by the batch.
func (r *BulkRequest) EstimatedSizeInBytes() int64 {
	return r.sizeInBytes
}

// HasIndexRequestsWithPipelines reports whether any index or create item names an ingest pipeline.
func (r *BulkRequest) HasIndexRequestsWithPipelines() bool {
	return lo.ContainsBy(r.Items, func(op Op) bool {
		io, ok := op.(*IndexOp)
		return ok && io.Pipeline != ""
	})
}

// Indices returns the distinct target index names in first seen order.
func (r *BulkRequest) Indices() []string {
	return lo.Uniq(lo.Map(r.Items, func(op Op, _ int) string {
		return op.IndexName()
	}))
}

// Validate checks the batch and every item. All messages are joined into a single
// validation error so nothing is dispatched for an invalid batch.
func (r *BulkRequest) Validate() error {
	var msgs []string
	if len(r.Items) == 0 {
		msgs = append(msgs, "no requests added")
	}
	for _, op := range r.Items {
		if op.RefreshPolicy() != RefreshNone {
			msgs = append(msgs, "RefreshPolicy is not supported on an item request. Set it on the BulkRequest instead.")
		}
		msgs = append(msgs, op.validate()...)
	}
	if r.WaitForActiveShards < ActiveShardsDefault {
		msgs = append(msgs, "wait_for_active_shards must be [all], [default] or a non negative number")
	}
	if len(msgs) == 0 {
		return nil
	}
	return ValidationError(msgs...)
}

// Payload returns the tag of item i, or nil.
func (r *BulkRequest) Payload(i int) any {
	if i < 0 || i >= len(r.Payloads) {
		return nil
	}
	return r.Payloads[i]
}
