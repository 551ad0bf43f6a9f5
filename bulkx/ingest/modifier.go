// Package ingest runs index and create items through preprocessing pipelines before a
// bulk request is routed.
package ingest

import (
	"context"

	"github.com/clinia/xbulk/bulkx"
)

// Iterator is a forward-only cursor over the items of a bulk request.
type Iterator interface {
	HasNext() bool
	Next() bulkx.Op
}

// Executor preprocesses the index and create items yielded by it. Items that fail are
// reported through onFailure and the executor moves on to the next item. The returned
// error fails the whole request.
type Executor interface {
	ExecuteBulk(ctx context.Context, it Iterator, onFailure func(op *bulkx.IndexOp, err error)) error
}

// RequestModifier walks a bulk request for an Executor, records the items that failed and
// rebuilds the request without them. Responses to the rebuilt request are scattered back to
// the positions of the original request with WrapResponse.
type RequestModifier struct {
	req      *bulkx.BulkRequest
	current  int
	failed   []bool
	failures []*bulkx.ItemResponse

	originalSlots []int
}

var _ Iterator = (*RequestModifier)(nil)

func NewRequestModifier(req *bulkx.BulkRequest) *RequestModifier {
	return &RequestModifier{
		req:     req,
		current: -1,
		failed:  make([]bool, len(req.Items)),
	}
}

func (m *RequestModifier) HasNext() bool {
	return m.current+1 < len(m.req.Items)
}

func (m *RequestModifier) Next() bulkx.Op {
	m.current++
	return m.req.Items[m.current]
}

// MarkCurrentItemAsFailed fails the item last returned by Next.
func (m *RequestModifier) MarkCurrentItemAsFailed(err error) {
	op := m.req.Items[m.current]
	m.failed[m.current] = true
	m.failures = append(m.failures, bulkx.NewFailedItem(m.current, op, bulkx.ForItem(err, op.IndexName(), op.DocID())))
}

// Failures returns the items failed so far, ordered by position.
func (m *RequestModifier) Failures() []*bulkx.ItemResponse {
	return m.failures
}

// BulkRequest returns the request to execute: the original one when nothing failed,
// otherwise a copy holding the remaining items.
func (m *RequestModifier) BulkRequest() *bulkx.BulkRequest {
	if len(m.failures) == 0 {
		return m.req
	}

	out := bulkx.NewBulkRequest()
	out.Timeout = m.req.Timeout
	out.WaitForActiveShards = m.req.WaitForActiveShards
	out.Refresh = m.req.Refresh

	m.originalSlots = make([]int, 0, len(m.req.Items)-len(m.failures))
	for i, op := range m.req.Items {
		if m.failed[i] {
			continue
		}
		out.Add(op, m.req.Payload(i))
		m.originalSlots = append(m.originalSlots, i)
	}
	return out
}

// WrapResponse maps resp, the response to the request returned by BulkRequest, back onto
// the original request and sets the ingest time. resp may be nil when every item failed.
func (m *RequestModifier) WrapResponse(ingestTookInMillis int64, resp *bulkx.BulkResponse) *bulkx.BulkResponse {
	if len(m.failures) == 0 {
		if resp == nil {
			return bulkx.NewBulkResponse(nil, 0, ingestTookInMillis)
		}
		return bulkx.NewBulkResponse(resp.Items, resp.TookInMillis, ingestTookInMillis)
	}

	var took int64
	items := make([]*bulkx.ItemResponse, len(m.req.Items))
	for _, f := range m.failures {
		items[f.ItemID] = f
	}
	if resp != nil {
		took = resp.TookInMillis
		for i, item := range resp.Items {
			slot := m.originalSlots[i]
			moved := *item
			moved.ItemID = slot
			items[slot] = &moved
		}
	}
	return bulkx.NewBulkResponse(items, took, ingestTookInMillis)
}
