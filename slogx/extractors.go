package slogx

import (
	"context"
	"log/slog"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

// NewRequestIDExtractor returns an extractor which reads the request id stored under
// requestIDContextKey and logs it as requestIDFieldKey.
func NewRequestIDExtractor(requestIDContextKey any, requestIDFieldKey string) slogctx.AttrExtractor {
	return func(ctx context.Context, _ time.Time, _ slog.Level, _ string) []slog.Attr {
		defer func() {
			// Nullify panic to prevent having this hook break a request
			recover()
		}()

		requestID := ctx.Value(requestIDContextKey)
		if requestID == nil {
			return nil
		}
		return []slog.Attr{slog.Any(requestIDFieldKey, requestID)}
	}
}

// NewContextHandler wraps next so that attributes stored in the context, plus the given
// extractors, are added to every record.
func NewContextHandler(next slog.Handler, extractors ...slogctx.AttrExtractor) slog.Handler {
	return slogctx.NewHandler(next, &slogctx.HandlerOptions{
		Prependers: append([]slogctx.AttrExtractor{slogctx.ExtractPrepended}, extractors...),
		Appenders:  []slogctx.AttrExtractor{slogctx.ExtractAppended},
	})
}
