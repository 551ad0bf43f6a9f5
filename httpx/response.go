package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/loggerx"
	"go.opentelemetry.io/otel/attribute"
)

type errorResponse struct {
	Error  *bulkx.ErrorBody `json:"error"`
	Status int              `json:"status"`
}

func writeJSON(ctx context.Context, l *loggerx.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		l.WithError(err).Warn(ctx, "failed to write the response body")
	}
}

func writeError(ctx context.Context, l *loggerx.Logger, w http.ResponseWriter, err error) {
	status := bulkx.StatusOf(err)
	if status >= http.StatusInternalServerError {
		l.WithError(err).Error(ctx, "request failed", attribute.Int("status", status))
	} else {
		l.WithError(err).Debug(ctx, "request rejected", attribute.Int("status", status))
	}
	writeJSON(ctx, l, w, status, errorResponse{
		Error:  bulkx.NewErrorBody(err),
		Status: status,
	})
}
