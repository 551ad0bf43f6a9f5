package tracex

import (
	"context"

	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/loggerx"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// RecoverWithStackTrace recovers from a panic and logs msg with the stack trace.
// It must be deferred directly:
//
//	defer tracex.RecoverWithStackTrace(ctx, l, "panic while handling request")
func RecoverWithStackTrace(ctx context.Context, l *loggerx.Logger, msg string) {
	// The recoverer itself must never panic.
	defer func() {
		_ = recover()
	}()

	if r := recover(); r != nil {
		if l == nil {
			return
		}
		l.Error(ctx, msg, StackTraceAttrs(r)...)
	}
}

// RecoverWithError is RecoverWithStackTrace that also hands the panic to onPanic as an
// internal error, so the deferring function can turn it into a returned error.
func RecoverWithError(ctx context.Context, l *loggerx.Logger, msg string, onPanic func(err error)) {
	r := recover()
	if r == nil {
		return
	}

	func() {
		defer func() {
			_ = recover()
		}()
		if l != nil {
			l.Error(ctx, msg, StackTraceAttrs(r)...)
		}
	}()

	err := errorx.InternalErrorf("%s: %s", msg, panicMessage(r))
	if e, ok := r.(error); ok {
		err = err.WithOriginalError(e)
	}
	onPanic(err)
}

func StackTraceAttrs(recovered any) []attribute.KeyValue {
	out := []attribute.KeyValue{}
	if recovered == nil {
		return out
	}
	out = append(out,
		semconv.ExceptionStacktrace(stackTrace(4)),
		semconv.ExceptionMessage(panicMessage(recovered)),
	)
	return out
}

func panicMessage(recovered any) string {
	switch v := recovered.(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return "unknown panic"
	}
}
