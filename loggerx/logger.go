package loggerx

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/slogx"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

type Logger struct {
	*slog.Logger
}

type Config struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type requestIDKey struct{}

// RequestIDKey is the context key read by the request id extractor installed by New.
var RequestIDKey = requestIDKey{}

// New builds a logger writing to w. Format is either "json" (default) or "text".
func New(c Config, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Level)}

	var h slog.Handler
	if strings.EqualFold(c.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	return &Logger{slog.New(slogx.NewContextHandler(h, slogx.NewRequestIDExtractor(RequestIDKey, "request_id")))}
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// WithRequestID stores id so that every record logged with ctx carries it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func (l *Logger) WithError(err error) *Logger {
	out := l.Logger.With(slogx.ErrorAttr(err))
	if cerr, ok := errorx.IsCliniaError(err); ok && len(cerr.StackTrace()) > 0 {
		out = out.With(slog.String(string(semconv.ExceptionStacktraceKey), cerr.StackTrace().String()))
	}
	return &Logger{out}
}

func (l *Logger) Error(ctx context.Context, msg string, kvs ...attribute.KeyValue) {
	l.Logger.LogAttrs(ctx, slog.LevelError, msg, slogx.NewLogFields(kvs...)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, kvs ...attribute.KeyValue) {
	l.Logger.LogAttrs(ctx, slog.LevelWarn, msg, slogx.NewLogFields(kvs...)...)
}

func (l *Logger) Info(ctx context.Context, msg string, kvs ...attribute.KeyValue) {
	l.Logger.LogAttrs(ctx, slog.LevelInfo, msg, slogx.NewLogFields(kvs...)...)
}

func (l *Logger) Debug(ctx context.Context, msg string, kvs ...attribute.KeyValue) {
	l.Logger.LogAttrs(ctx, slog.LevelDebug, msg, slogx.NewLogFields(kvs...)...)
}

func (l *Logger) WithFields(kvs ...attribute.KeyValue) *Logger {
	lfs := slogx.NewLogFields(kvs...)
	// This is a workaround until we get a nice slog.WithAttrs method - See https://github.com/golang/go/issues/66937#issuecomment-2730350514
	return &Logger{l.Logger.With("", slog.GroupValue(lfs...))}
}

// WithSpanStartOptions copies the attributes of the span options onto the logger.
func (l *Logger) WithSpanStartOptions(opts ...trace.SpanStartOption) *Logger {
	cfg := trace.NewSpanStartConfig(opts...)
	attrs := cfg.Attributes()
	if len(attrs) == 0 {
		return l
	}
	return l.WithFields(attrs...)
}
