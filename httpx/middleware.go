package httpx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/clinia/xbulk/featureflagx"
	"github.com/clinia/xbulk/loggerx"
	"github.com/clinia/xbulk/otelx"
	"github.com/clinia/xbulk/slogx"
	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/trace"
)

const unmatchedRoute = "unmatched"

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	written  *prometheus.CounterVec
}

func newHTTPMetrics(reg prometheus.Registerer) (*httpMetrics, error) {
	labels := otelx.NewPrometheusLabels(
		attribute.String("http.route", ""),
		attribute.String("http.method", ""),
		attribute.String("http.status_code", ""),
	)
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}

	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xbulk",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of handled HTTP requests.",
		}, names),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "xbulk",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time spent handling HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, names),
		written: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xbulk",
			Subsystem: "http",
			Name:      "response_bytes_total",
			Help:      "Number of bytes written in HTTP responses.",
		}, names),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration, m.written} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type routeKey struct{}

type routeHolder struct {
	route string
}

// withRoute records the matched pattern so the metrics middleware can label by route
// instead of raw path.
func (s *Server) withRoute(pattern string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := r.Context().Value(routeKey{}).(*routeHolder); ok {
			h.route = pattern
		}
		next(w, r)
	})
}

// instrument picks up the caller trace context, assigns the request id, attaches the
// feature flags and records metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeaderKey)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeaderKey, id)

		holder := &routeHolder{route: unmatchedRoute}
		ctx := context.WithValue(r.Context(), routeKey{}, holder)
		if spanCtx := trace.SpanContextFromContext(ctx); !spanCtx.IsValid() {
			_, bag, remote := otelhttptrace.Extract(ctx, r, otelhttptrace.WithPropagators(s.propagator))
			if remote.IsValid() {
				ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
			}
			if bag.Len() > 0 {
				ctx = baggage.ContextWithBaggage(ctx, bag)
			}
		}
		ctx = loggerx.WithRequestID(ctx, id)
		if s.flags != nil {
			ctx = featureflagx.NewContext(ctx, s.flags)
		}
		r = r.WithContext(ctx)

		s.l.DebugContext(ctx, "handling request", slogx.RequestAttrs(r))
		m := httpsnoop.CaptureMetrics(next, w, r)

		s.l.Debug(ctx, "handled request",
			attribute.String("http.route", holder.route),
			attribute.Int("http.status_code", m.Code),
			attribute.Int64("http.response_size", m.Written),
			attribute.Int64("duration_ms", m.Duration.Milliseconds()),
		)

		if s.metrics == nil {
			return
		}
		labels := otelx.NewPrometheusLabels(
			attribute.String("http.route", holder.route),
			attribute.String("http.method", r.Method),
			attribute.String("http.status_code", strconv.Itoa(m.Code)),
		)
		s.metrics.requests.With(labels).Inc()
		s.metrics.duration.With(labels).Observe(m.Duration.Seconds())
		s.metrics.written.With(labels).Add(float64(m.Written))
	})
}
