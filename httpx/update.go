package httpx

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/errorx"
	"github.com/inhies/go-bytesize"
	"github.com/spf13/cast"
	"go.opentelemetry.io/otel/attribute"
)

// handleUpdate runs a single document update as a one item batch. Unlike the bulk
// endpoint, a failed item answers with its own error status.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := s.parseUpdate(r)
	if err != nil {
		writeError(ctx, s.l, w, err)
		return
	}

	res, err := s.executor.Execute(ctx, req)
	if err != nil {
		writeError(ctx, s.l, w, err)
		return
	}
	if len(res.Items) != 1 {
		writeError(ctx, s.l, w, errorx.InternalErrorf("expected one update response but got [%d]", len(res.Items)))
		return
	}

	item := res.Items[0]
	if item.IsFailed() {
		s.l.Debug(ctx, "update failed",
			attribute.String("index", item.Index()),
			attribute.String("id", item.ID()),
		)
		writeError(ctx, s.l, w, item.Failure.Cause)
		return
	}
	writeJSON(ctx, s.l, w, item.Status(), item.Result)
}

func (s *Server) parseUpdate(r *http.Request) (*bulkx.BulkRequest, error) {
	q := r.URL.Query()

	op := bulkx.NewUpdateOp(r.PathValue("index"), r.PathValue("id"))
	op.Type = r.PathValue("type")
	op.Routing = q.Get("routing")
	op.Parent = q.Get("parent")

	var err error
	if v := q.Get("doc_as_upsert"); v != "" {
		if op.DocAsUpsert, err = strconv.ParseBool(v); err != nil {
			return nil, errorx.InvalidArgumentErrorf("Failed to parse value [%s] as only [true] or [false] are allowed.", v)
		}
	}
	if v := q.Get("retry_on_conflict"); v != "" {
		if op.RetryOnConflict, err = cast.ToIntE(v); err != nil {
			return nil, errorx.InvalidArgumentErrorf("Failed to parse int parameter [retry_on_conflict] with value [%s]", v)
		}
	}
	if v := q.Get("version"); v != "" {
		if op.Version, err = cast.ToInt64E(v); err != nil {
			return nil, errorx.InvalidArgumentErrorf("Failed to parse long parameter [version] with value [%s]", v)
		}
	}
	if v := q.Get("version_type"); v != "" {
		if op.VersionType, err = bulkx.ParseVersionType(v); err != nil {
			return nil, err
		}
	}

	fetch, err := bulkx.ParseFetchSourceParams(q.Get("_source"), q.Get("_source_includes"), q.Get("_source_excludes"))
	if err != nil {
		return nil, err
	}
	if f := q.Get("fields"); f != "" {
		if fetch != nil {
			return nil, errorx.InvalidArgumentErrorf("[fields] and [_source] cannot be used in the same request")
		}
		op.Fields = strings.Split(f, ",")
	}
	op.FetchSource = fetch

	data, err := readBody(r, s.parser.MaxContentLength)
	if err != nil {
		return nil, err
	}
	if limit := s.parser.MaxContentLength; limit > 0 && bytesize.ByteSize(len(data)) > limit {
		return nil, errorx.PayloadTooLargeErrorf("update body exceeds max_content_length [%s]", limit.String())
	}
	if err := bulkx.ParseUpdateBody(op, data); err != nil {
		return nil, err
	}

	req := bulkx.NewBulkRequest().Add(op, nil)
	if err := applyRequestParams(r, req); err != nil {
		return nil, err
	}
	return req, nil
}
