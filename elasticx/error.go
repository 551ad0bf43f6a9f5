package elasticx

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/errorx"
	"github.com/elastic/go-elasticsearch/v9/esapi"
)

type errorCause struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Index  string `json:"index"`
}

type errorResponse struct {
	Error  errorCause `json:"error"`
	Status int        `json:"status"`
}

// withElasticError turns an error response into an item error carrying the Elasticsearch
// error type. index and id locate the document the request was about, if any.
func withElasticError(res *esapi.Response, index, id string) error {
	body, _ := io.ReadAll(res.Body)

	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Error.Type == "" {
		reason := strings.TrimSpace(string(body))
		if reason == "" {
			reason = http.StatusText(res.StatusCode)
		}
		return &bulkx.ItemError{Kind: bulkx.KindGeneric, Index: index, ID: id, Err: statusError(res.StatusCode, reason)}
	}

	if er.Error.Index != "" {
		index = er.Error.Index
	}
	switch bulkx.ErrorKind(er.Error.Type) {
	case bulkx.KindVersionConflict:
		_, reason, ok := strings.Cut(er.Error.Reason, "version conflict, ")
		if !ok {
			reason = er.Error.Reason
		}
		return bulkx.VersionConflictError(index, bulkx.DefaultType, id, reason)
	case bulkx.KindIndexNotFound:
		return bulkx.IndexNotFoundError(index)
	case bulkx.KindResourceAlreadyExists:
		return bulkx.ResourceAlreadyExistsError(index)
	}
	return &bulkx.ItemError{
		Kind:  bulkx.ErrorKind(er.Error.Type),
		Index: index,
		ID:    id,
		Err:   statusError(res.StatusCode, er.Error.Reason),
	}
}

func statusError(status int, reason string) *errorx.CliniaError {
	switch {
	case status == http.StatusNotFound:
		return errorx.NotFoundErrorf("%s", reason)
	case status == http.StatusConflict:
		return errorx.AbortedErrorf("%s", reason)
	case status == http.StatusRequestEntityTooLarge:
		return errorx.PayloadTooLargeErrorf("%s", reason)
	case status == http.StatusTooManyRequests, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return errorx.UnavailableErrorf("%s", reason)
	case status >= 400 && status < 500:
		return errorx.InvalidArgumentErrorf("%s", reason)
	default:
		return errorx.InternalErrorf("%s", reason)
	}
}
