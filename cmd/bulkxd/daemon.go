package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/bulkx/coordinator"
	"github.com/clinia/xbulk/bulkx/ingest"
	"github.com/clinia/xbulk/bulkx/routing"
	"github.com/clinia/xbulk/bulkx/script"
	"github.com/clinia/xbulk/bulkx/shard"
	"github.com/clinia/xbulk/bulkx/update"
	"github.com/clinia/xbulk/clusterx"
	"github.com/clinia/xbulk/clusterx/kgox"
	"github.com/clinia/xbulk/configx"
	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/featureflagx"
	"github.com/clinia/xbulk/httpx"
	"github.com/clinia/xbulk/loggerx"
	"github.com/clinia/xbulk/otelx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

type daemon struct {
	l    *loggerx.Logger
	conf *configx.Provider

	tracer   *otelx.Tracer
	meter    *otelx.Meter
	registry *prometheus.Registry
	cluster  *clusterx.Service
	scripts  *script.Service
	syncer   *kgox.Syncer
	handler  *httpx.Server
}

func newDaemon(ctx context.Context, conf *configx.Provider, out io.Writer) (_ *daemon, err error) {
	var lc loggerx.Config
	if err := conf.Unmarshal("log", &lc); err != nil {
		return nil, err
	}
	d := &daemon{
		l:        loggerx.New(lc, out),
		conf:     conf,
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			d.close(context.WithoutCancel(ctx))
		}
	}()

	d.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := d.setupTelemetry(ctx); err != nil {
		return nil, err
	}

	st, err := openStorage(ctx, d.l, conf)
	if err != nil {
		return nil, err
	}
	d.cluster = clusterx.NewService(d.l, st.initial)

	if d.scripts, err = d.newScripts(); err != nil {
		return nil, err
	}
	pipelines, err := d.newIngest()
	if err != nil {
		return nil, err
	}

	exec := shard.NewExecutor(d.l, st.engine, update.NewResolver(d.l, d.scripts))
	opts, err := d.coordinatorOptions(st, pipelines)
	if err != nil {
		return nil, err
	}
	coord, err := coordinator.New(d.l, d.cluster, shard.NewLocalDispatcher(d.l, exec), opts...)
	if err != nil {
		return nil, err
	}

	if brokers := conf.Strings("cluster.kafka.brokers"); len(brokers) > 0 {
		var kc kgox.Config
		if err := conf.Unmarshal("cluster.kafka", &kc); err != nil {
			return nil, err
		}
		var kopts []kgox.Option
		if d.tracer.IsLoaded() {
			kopts = append(kopts, kgox.WithTracerProvider(d.tracer.Provider()))
		}
		if d.syncer, err = kgox.NewSyncer(d.l, d.cluster, kc, kopts...); err != nil {
			return nil, err
		}
	}

	if d.handler, err = d.newHandler(coord); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *daemon) setupTelemetry(ctx context.Context) (err error) {
	tc := &otelx.TracerConfig{}
	if err := d.conf.Unmarshal("tracing", tc); err != nil {
		return err
	}
	if d.tracer, err = otelx.NewTracer(ctx, d.l, tc); err != nil {
		return err
	}

	mc := &otelx.MeterConfig{}
	if err := d.conf.Unmarshal("metrics", mc); err != nil {
		return err
	}
	mc.Providers.Prometheus.Registerer = d.registry
	d.meter, err = otelx.NewMeter(ctx, d.l, mc)
	return err
}

func (d *daemon) newScripts() (*script.Service, error) {
	s, err := script.NewService(d.l, script.Config{CacheSize: int64(d.conf.Int("script.cache_size"))})
	if err != nil {
		return nil, err
	}
	stored := map[string]string{}
	if err := d.conf.Unmarshal("script.stored", &stored); err != nil {
		s.Close()
		return nil, err
	}
	for id, source := range stored {
		if err := s.PutScript(id, source); err != nil {
			s.Close()
			return nil, errorx.InvalidArgumentErrorf("stored script [%s] is invalid: %s", id, err.Error()).WithOriginalError(err)
		}
	}
	return s, nil
}

func (d *daemon) newIngest() (*ingest.Service, error) {
	s := ingest.NewService(d.l)
	pipelines := map[string]any{}
	if err := d.conf.Unmarshal("ingest.pipelines", &pipelines); err != nil {
		return nil, err
	}
	for id, p := range pipelines {
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, errorx.InvalidArgumentErrorf("pipeline [%s] is invalid: %s", id, err.Error())
		}
		if err := s.PutPipeline(id, raw); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (d *daemon) coordinatorOptions(st *storage, pipelines *ingest.Service) ([]coordinator.Option, error) {
	policy, err := routing.ParseAutoCreatePolicy(d.conf.String("bulk.auto_create_index"))
	if err != nil {
		return nil, err
	}
	opts := []coordinator.Option{
		coordinator.WithIngest(pipelines),
		coordinator.WithAutoCreatePolicy(policy),
		coordinator.WithAutoCreateRetry(d.conf.Int("bulk.auto_create.attempts"), d.conf.Duration("bulk.auto_create.interval")),
		coordinator.WithIDGeneration(d.conf.Bool("bulk.allow_id_generation")),
		coordinator.WithTracer(d.tracer),
		coordinator.WithMeterProvider(d.meter.Provider()),
	}
	if st.creator != nil {
		opts = append(opts, coordinator.WithIndexCreator(&registeringCreator{store: st.creator, cluster: d.cluster}))
	}
	return opts, nil
}

func (d *daemon) newHandler(exec httpx.BulkExecutor) (*httpx.Server, error) {
	maxContentLength, err := d.conf.ByteSize("http.max_content_length")
	if err != nil {
		return nil, err
	}
	ff, err := featureflagx.New(d.conf.BoolMap("feature_flags"), featureflagx.KnownFlags)
	if err != nil {
		return nil, err
	}

	opts := []httpx.Option{
		httpx.WithParser(bulkx.NewParser(d.conf.Bool("http.allow_explicit_index"), maxContentLength)),
		httpx.WithFeatureFlags(ff),
		httpx.WithRegistry(d.registry, d.registry),
		httpx.WithPropagator(d.tracer.TextMapPropagator()),
		httpx.WithHealthChecker(d.healthy),
	}
	if d.conf.Bool("http.cors.enabled") {
		opts = append(opts, httpx.WithCORS(cors.Options{
			AllowedOrigins:   d.conf.Strings("http.cors.allowed_origins"),
			AllowedHeaders:   d.conf.Strings("http.cors.allowed_headers"),
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut},
			AllowCredentials: d.conf.Bool("http.cors.allow_credentials"),
		}))
	}
	return httpx.NewServer(d.l, exec, opts...)
}

func (d *daemon) healthy(context.Context) error {
	select {
	case <-d.cluster.Closed():
		return errorx.UnavailableErrorf("cluster service is closed")
	default:
		return nil
	}
}

// serve runs until ctx is done, then shuts everything down.
func (d *daemon) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              d.conf.String("http.address"),
		Handler:           d.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if d.syncer != nil {
		d.syncer.Start(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.l.Info(gctx, "listening", attribute.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errorx.UnavailableErrorf("http server failed: %s", err.Error()).WithOriginalError(err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), d.conf.Duration("http.shutdown_timeout"))
		defer cancel()
		d.l.Info(sctx, "shutting down")
		err := srv.Shutdown(sctx)
		d.close(sctx)
		return err
	})
	return g.Wait()
}

func (d *daemon) close(ctx context.Context) {
	if d.syncer != nil {
		d.syncer.Close()
	}
	if d.cluster != nil {
		d.cluster.Close()
	}
	if d.scripts != nil {
		d.scripts.Close()
	}
	if d.meter != nil {
		if err := d.meter.Shutdown(ctx); err != nil {
			d.l.WithError(err).Warn(ctx, "failed to flush metrics")
		}
	}
	if d.tracer != nil {
		if err := d.tracer.Shutdown(ctx); err != nil {
			d.l.WithError(err).Warn(ctx, "failed to flush traces")
		}
	}
}
