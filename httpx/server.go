// Package httpx exposes the bulk API over HTTP.
package httpx

import (
	"context"
	"net/http"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/featureflagx"
	"github.com/clinia/xbulk/loggerx"
	"github.com/clinia/xbulk/otelx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/propagation"
)

// BulkExecutor runs parsed bulk requests.
type BulkExecutor interface {
	Execute(ctx context.Context, req *bulkx.BulkRequest) (*bulkx.BulkResponse, error)
}

// HealthChecker reports whether the service can take writes. A nil error means healthy.
type HealthChecker func(ctx context.Context) error

type Option func(*Server)

func WithParser(p *bulkx.Parser) Option {
	return func(s *Server) {
		s.parser = p
	}
}

func WithFeatureFlags(ff *featureflagx.FeatureFlags) Option {
	return func(s *Server) {
		s.flags = ff
	}
}

// WithCORS enables CORS with the given options.
func WithCORS(opts cors.Options) Option {
	return func(s *Server) {
		s.cors = &opts
	}
}

// WithRegistry registers the HTTP metrics on reg and serves gatherer on /metrics.
func WithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.registerer = reg
		s.gatherer = gatherer
	}
}

// WithPropagator sets how the caller trace context is read from request headers.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(s *Server) {
		s.propagator = p
	}
}

func WithHealthChecker(hc HealthChecker) Option {
	return func(s *Server) {
		s.health = hc
	}
}

// Server routes the bulk endpoints, metrics and health checks.
type Server struct {
	l        *loggerx.Logger
	executor BulkExecutor
	parser   *bulkx.Parser
	flags    *featureflagx.FeatureFlags
	cors     *cors.Options
	health   HealthChecker

	propagator propagation.TextMapPropagator

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	metrics    *httpMetrics

	handler http.Handler
}

func NewServer(l *loggerx.Logger, executor BulkExecutor, opts ...Option) (*Server, error) {
	s := &Server{
		l:        l,
		executor: executor,
		parser:   bulkx.NewParser(true, 0),

		propagator: otelx.NewPropagator(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registerer != nil {
		m, err := newHTTPMetrics(s.registerer)
		if err != nil {
			return nil, err
		}
		s.metrics = m
	}

	mux := http.NewServeMux()
	s.route(mux, "/_bulk", s.handleBulk)
	s.route(mux, "/{index}/_bulk", s.handleBulk)
	s.route(mux, "/{index}/{type}/_bulk", s.handleBulk)
	mux.Handle("POST /{index}/{type}/{id}/_advanceupdate", s.withRoute("/{index}/{type}/{id}/_advanceupdate", s.handleUpdate))
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	var h http.Handler = mux
	h = s.instrument(h)
	if s.cors != nil {
		h = cors.New(*s.cors).Handler(h)
	}
	s.handler = h
	return s, nil
}

func (s *Server) route(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.Handle("POST "+pattern, s.withRoute(pattern, fn))
	mux.Handle("PUT "+pattern, s.withRoute(pattern, fn))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			_ = SetCliniaUnhealthyHeader(w)
			writeError(r.Context(), s.l, w, err)
			return
		}
	}
	_ = SetCliniaHealthyHeader(w)
	writeJSON(r.Context(), s.l, w, http.StatusOK, map[string]string{"status": "ok"})
}
