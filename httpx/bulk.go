package httpx

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/featureflagx"
	"github.com/inhies/go-bytesize"
	"go.opentelemetry.io/otel/attribute"
)

// handleBulk parses the newline delimited body and runs it. Item failures are part of a
// 200 response. Only request level errors produce an error status.
func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := s.parseBulk(r)
	if err != nil {
		writeError(ctx, s.l, w, err)
		return
	}

	res, err := s.executor.Execute(ctx, req)
	if err != nil {
		writeError(ctx, s.l, w, err)
		return
	}

	if res.HasFailures() {
		s.l.Debug(ctx, "bulk request completed with failures",
			attribute.Int("items", len(res.Items)),
			attribute.String("failures", res.BuildFailureMessage()),
		)
	}
	writeJSON(ctx, s.l, w, http.StatusOK, res)
}

func (s *Server) parseBulk(r *http.Request) (*bulkx.BulkRequest, error) {
	q := r.URL.Query()

	fetch, err := bulkx.ParseFetchSourceParams(q.Get("_source"), q.Get("_source_includes"), q.Get("_source_excludes"))
	if err != nil {
		return nil, err
	}

	defaults := bulkx.Defaults{
		Index:       r.PathValue("index"),
		Type:        r.PathValue("type"),
		Routing:     q.Get("routing"),
		Pipeline:    q.Get("pipeline"),
		FetchSource: fetch,
	}
	if f := q.Get("fields"); f != "" {
		defaults.Fields = strings.Split(f, ",")
	}

	parser := s.parser.WithDefaults(defaults)

	data, err := readBody(r, parser.MaxContentLength)
	if err != nil {
		return nil, err
	}

	req, err := parser.Parse(data, nil)
	if err != nil {
		return nil, err
	}
	if err := applyRequestParams(r, req); err != nil {
		return nil, err
	}
	return req, nil
}

// readBody reads at most limit bytes of the body, plus one so callers can report the
// overflow. A zero limit reads everything.
func readBody(r *http.Request, limit bytesize.ByteSize) ([]byte, error) {
	var body io.Reader = r.Body
	if limit > 0 {
		body = io.LimitReader(r.Body, int64(limit)+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errorx.InvalidArgumentErrorf("failed to read the request body: %s", err.Error()).WithOriginalError(err)
	}
	return data, nil
}

// applyRequestParams reads the batch level query parameters shared by the write endpoints.
func applyRequestParams(r *http.Request, req *bulkx.BulkRequest) error {
	q := r.URL.Query()

	var err error
	if t := q.Get("timeout"); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil || d < 0 {
			return errorx.InvalidArgumentErrorf("failed to parse setting [timeout] with value [%s] as a time value", t)
		}
		req.Timeout = d
	}

	if req.Refresh, err = bulkx.ParseRefreshPolicy(q.Get("refresh")); err != nil {
		return err
	}

	if v, ok := q["wait_for_active_shards"]; ok {
		if !featureflagx.IsEnabledInContext(r.Context(), featureflagx.WaitForActiveShards) {
			return errorx.InvalidArgumentErrorf("request contains unrecognized parameter: [wait_for_active_shards]")
		}
		if req.WaitForActiveShards, err = bulkx.ParseActiveShardCount(v[0]); err != nil {
			return err
		}
	}
	return nil
}
