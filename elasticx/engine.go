package elasticx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/bulkx/shard"
	"github.com/clinia/xbulk/bulkx/update"
	"github.com/elastic/go-elasticsearch/v9/esapi"
	"github.com/samber/lo"
)

// Engine stores the documents of every shard in the Elasticsearch index of the same name.
// Elasticsearch routes documents on its own, so the shard number is not forwarded.
type Engine struct {
	c *Client
}

var _ shard.Engine = (*Engine)(nil)

func NewEngine(c *Client) *Engine {
	return &Engine{c: c}
}

type getResponse struct {
	Index       string          `json:"_index"`
	ID          string          `json:"_id"`
	Version     int64           `json:"_version"`
	SeqNo       int64           `json:"_seq_no"`
	PrimaryTerm int64           `json:"_primary_term"`
	Routing     string          `json:"_routing"`
	Found       bool            `json:"found"`
	Source      json.RawMessage `json:"_source"`
}

type writeResponse struct {
	Version     int64  `json:"_version"`
	SeqNo       int64  `json:"_seq_no"`
	PrimaryTerm int64  `json:"_primary_term"`
	Result      string `json:"result"`
}

func (e *Engine) Get(ctx context.Context, sid bulkx.ShardID, id string) (*update.Snapshot, error) {
	res, err := esapi.GetRequest{
		Index:      sid.Index,
		DocumentID: id,
	}.Do(ctx, e.c.es)
	if err != nil {
		return nil, bulkx.TransportError(sid.String(), err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		var gr getResponse
		if json.NewDecoder(res.Body).Decode(&gr) == nil && gr.ID != "" && !gr.Found {
			return nil, nil
		}
		return nil, bulkx.IndexNotFoundError(sid.Index)
	}
	if res.IsError() {
		return nil, withElasticError(res, sid.Index, id)
	}

	var gr getResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return nil, bulkx.ParseError("failed to parse get response: %s", err.Error())
	}
	if !gr.Found {
		return nil, nil
	}
	return &update.Snapshot{
		Index:       gr.Index,
		Type:        bulkx.DefaultType,
		ID:          gr.ID,
		Version:     gr.Version,
		SeqNo:       gr.SeqNo,
		PrimaryTerm: gr.PrimaryTerm,
		Routing:     gr.Routing,
		Source:      gr.Source,
	}, nil
}

func (e *Engine) Index(ctx context.Context, sid bulkx.ShardID, op *bulkx.IndexOp, pre shard.Precondition) (*shard.WriteOutcome, error) {
	req := esapi.IndexRequest{
		Index:      sid.Index,
		DocumentID: op.ID,
		Body:       bytes.NewReader(op.Source),
		Routing:    routingParam(op.Routing),
	}
	if op.Create {
		req.OpType = "create"
	}
	req.Version, req.VersionType = versionParams(op.Version, op.VersionType)
	req.IfSeqNo, req.IfPrimaryTerm = preconditionParams(pre)

	res, err := req.Do(ctx, e.c.es)
	if err != nil {
		return nil, bulkx.TransportError(sid.String(), err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, withElasticError(res, sid.Index, op.ID)
	}
	wr, err := decodeWrite(res)
	if err != nil {
		return nil, err
	}
	return &shard.WriteOutcome{
		Version:     wr.Version,
		SeqNo:       wr.SeqNo,
		PrimaryTerm: wr.PrimaryTerm,
		Created:     wr.Result == string(bulkx.OutcomeCreated),
	}, nil
}

func (e *Engine) Delete(ctx context.Context, sid bulkx.ShardID, op *bulkx.DeleteOp, pre shard.Precondition) (*shard.WriteOutcome, error) {
	req := esapi.DeleteRequest{
		Index:      sid.Index,
		DocumentID: op.ID,
		Routing:    routingParam(op.Routing),
	}
	req.Version, req.VersionType = versionParams(op.Version, op.VersionType)
	req.IfSeqNo, req.IfPrimaryTerm = preconditionParams(pre)

	res, err := req.Do(ctx, e.c.es)
	if err != nil {
		return nil, bulkx.TransportError(sid.String(), err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		var wr writeResponse
		if json.NewDecoder(res.Body).Decode(&wr) == nil && wr.Result == string(bulkx.OutcomeNotFound) {
			return nil, bulkx.DocumentMissingError(sid.Index, op.Type, op.ID)
		}
		return nil, bulkx.IndexNotFoundError(sid.Index)
	}
	if res.IsError() {
		return nil, withElasticError(res, sid.Index, op.ID)
	}
	wr, err := decodeWrite(res)
	if err != nil {
		return nil, err
	}
	return &shard.WriteOutcome{
		Version:     wr.Version,
		SeqNo:       wr.SeqNo,
		PrimaryTerm: wr.PrimaryTerm,
		Found:       true,
	}, nil
}

func routingParam(routing string) []string {
	if routing == "" {
		return nil
	}
	return []string{routing}
}

func (e *Engine) Refresh(ctx context.Context, sid bulkx.ShardID) error {
	res, err := esapi.IndicesRefreshRequest{Index: []string{sid.Index}}.Do(ctx, e.c.es)
	if err != nil {
		return bulkx.TransportError(sid.String(), err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return withElasticError(res, sid.Index, "")
	}
	return nil
}

func decodeWrite(res *esapi.Response) (*writeResponse, error) {
	var wr writeResponse
	if err := json.NewDecoder(res.Body).Decode(&wr); err != nil {
		return nil, bulkx.ParseError("failed to parse write response: %s", err.Error())
	}
	return &wr, nil
}

// versionParams returns the version parameters of a write. Internal versions are checked
// through the sequence number precondition instead.
func versionParams(version int64, vt bulkx.VersionType) (*int, string) {
	if vt == bulkx.VersionTypeInternal || version < 0 {
		return nil, ""
	}
	return lo.ToPtr(int(version)), string(vt)
}

func preconditionParams(pre shard.Precondition) (*int, *int) {
	if !pre.IsSet() {
		return nil, nil
	}
	return lo.ToPtr(int(pre.IfSeqNo)), lo.ToPtr(int(pre.IfPrimaryTerm))
}
