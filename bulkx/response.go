package bulkx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/clinia/xbulk/errorx"
	"github.com/samber/lo"
)

// Outcome is the result of a successful write.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeUpdated  Outcome = "updated"
	OutcomeDeleted  Outcome = "deleted"
	OutcomeNoop     Outcome = "noop"
	OutcomeNotFound Outcome = "not_found"
)

// NoIngestTook marks a response that did not go through ingest.
const NoIngestTook int64 = -1

// UnassignedSeqNo is reported when a write did not produce a sequence number.
const UnassignedSeqNo int64 = -2

type ShardInfo struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// GetResult is the document returned with an update when source fetching was requested.
type GetResult struct {
	Found  bool           `json:"found"`
	Source map[string]any `json:"_source,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

type WriteResult struct {
	Index         string
	Type          string
	ID            string
	Version       int64
	SeqNo         int64
	PrimaryTerm   int64
	Result        Outcome
	ForcedRefresh bool
	Shards        *ShardInfo
	Get           *GetResult
}

func (r *WriteResult) Status() int {
	if r.Result == OutcomeCreated {
		return http.StatusCreated
	}
	return http.StatusOK
}

type writeResultJSON struct {
	Index         string     `json:"_index"`
	Type          string     `json:"_type"`
	ID            string     `json:"_id"`
	Version       int64      `json:"_version"`
	Result        Outcome    `json:"result"`
	ForcedRefresh bool       `json:"forced_refresh,omitempty"`
	Shards        *ShardInfo `json:"_shards,omitempty"`
	SeqNo         *int64     `json:"_seq_no,omitempty"`
	PrimaryTerm   *int64     `json:"_primary_term,omitempty"`
	Status        int        `json:"status"`
	Get           *GetResult `json:"get,omitempty"`
}

func (r *WriteResult) MarshalJSON() ([]byte, error) {
	out := writeResultJSON{
		Index:         r.Index,
		Type:          r.Type,
		ID:            r.ID,
		Version:       r.Version,
		Result:        r.Result,
		ForcedRefresh: r.ForcedRefresh,
		Shards:        r.Shards,
		Status:        r.Status(),
		Get:           r.Get,
	}
	if r.SeqNo >= 0 {
		out.SeqNo = lo.ToPtr(r.SeqNo)
		out.PrimaryTerm = lo.ToPtr(r.PrimaryTerm)
	}
	return json.Marshal(out)
}

// Failure is a write that did not apply.
type Failure struct {
	Index string
	Type  string
	ID    string
	Cause error
}

func (f *Failure) Status() int {
	return StatusOf(f.Cause)
}

func (f *Failure) Message() string {
	if f.Cause == nil {
		return ""
	}
	return f.Cause.Error()
}

func (f *Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Index  string     `json:"_index"`
		Type   string     `json:"_type"`
		ID     string     `json:"_id"`
		Status int        `json:"status"`
		Error  *ErrorBody `json:"error"`
	}{f.Index, f.Type, f.ID, f.Status(), NewErrorBody(f.Cause)})
}

// ItemResponse is the outcome of the item at position ItemID of the batch. Exactly one of
// Result and Failure is set.
type ItemResponse struct {
	ItemID  int
	OpType  OpType
	Result  *WriteResult
	Failure *Failure
}

func NewSuccessItem(itemID int, opType OpType, result *WriteResult) *ItemResponse {
	return &ItemResponse{ItemID: itemID, OpType: opType, Result: result}
}

// NewFailedItem builds the failure of op at position itemID.
func NewFailedItem(itemID int, op Op, cause error) *ItemResponse {
	return &ItemResponse{
		ItemID: itemID,
		OpType: op.OpType(),
		Failure: &Failure{
			Index: op.IndexName(),
			Type:  op.TypeName(),
			ID:    op.DocID(),
			Cause: cause,
		},
	}
}

func (r *ItemResponse) IsFailed() bool {
	return r.Failure != nil
}

func (r *ItemResponse) Index() string {
	if r.Failure != nil {
		return r.Failure.Index
	}
	return r.Result.Index
}

func (r *ItemResponse) Type() string {
	if r.Failure != nil {
		return r.Failure.Type
	}
	return r.Result.Type
}

func (r *ItemResponse) ID() string {
	if r.Failure != nil {
		return r.Failure.ID
	}
	return r.Result.ID
}

func (r *ItemResponse) Status() int {
	if r.Failure != nil {
		return r.Failure.Status()
	}
	return r.Result.Status()
}

func (r *ItemResponse) FailureMessage() string {
	if r.Failure == nil {
		return ""
	}
	return r.Failure.Message()
}

func (r *ItemResponse) MarshalJSON() ([]byte, error) {
	var body any = r.Result
	if r.Failure != nil {
		body = r.Failure
	}
	return json.Marshal(map[string]any{string(r.OpType): body})
}

// BulkResponse holds one item per operation of the batch, in batch order.
type BulkResponse struct {
	Items              []*ItemResponse
	TookInMillis       int64
	IngestTookInMillis int64
}

func NewBulkResponse(items []*ItemResponse, tookInMillis, ingestTookInMillis int64) *BulkResponse {
	return &BulkResponse{
		Items:              items,
		TookInMillis:       tookInMillis,
		IngestTookInMillis: ingestTookInMillis,
	}
}

// Aggregate builds the response from slots indexed by batch position. Every slot must be set.
func Aggregate(slots []*ItemResponse, tookInMillis, ingestTookInMillis int64) (*BulkResponse, error) {
	for i, s := range slots {
		if s == nil {
			return nil, errorx.InternalErrorf("no response for item [%d]", i)
		}
		if s.ItemID != i {
			return nil, errorx.InternalErrorf("response for item [%d] stored in slot [%d]", s.ItemID, i)
		}
	}
	return NewBulkResponse(slots, tookInMillis, ingestTookInMillis), nil
}

func (r *BulkResponse) HasFailures() bool {
	return lo.ContainsBy(r.Items, func(it *ItemResponse) bool {
		return it.IsFailed()
	})
}

// BuildFailureMessage returns a digest of every failed item.
func (r *BulkResponse) BuildFailureMessage() string {
	var b strings.Builder
	b.WriteString("failure in bulk execution:")
	for i, it := range r.Items {
		if !it.IsFailed() {
			continue
		}
		fmt.Fprintf(&b, "\n[%d]: index [%s], type [%s], id [%s], message [%s]",
			i, it.Index(), it.Type(), it.ID(), it.FailureMessage())
	}
	return b.String()
}

func (r *BulkResponse) MarshalJSON() ([]byte, error) {
	out := struct {
		Took       int64           `json:"took"`
		IngestTook *int64          `json:"ingest_took,omitempty"`
		Errors     bool            `json:"errors"`
		Items      []*ItemResponse `json:"items"`
	}{
		Took:   r.TookInMillis,
		Errors: r.HasFailures(),
		Items:  r.Items,
	}
	if r.IngestTookInMillis != NoIngestTook {
		out.IngestTook = lo.ToPtr(r.IngestTookInMillis)
	}
	if out.Items == nil {
		out.Items = []*ItemResponse{}
	}
	return json.Marshal(out)
}
