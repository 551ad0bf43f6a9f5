package kgox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/clinia/xbulk/clusterx"
	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/loggerx"
	"github.com/samber/lo"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// KgoClient is the part of *kgo.Client used by the Syncer.
type KgoClient interface {
	Close()
	PollRecords(ctx context.Context, maxPollRecords int) kgo.Fetches
}

type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	client         KgoClient
}

// WithTracerProvider instruments the Kafka client.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithClient replaces the Kafka client, mostly for tests.
func WithClient(cl KgoClient) Option {
	return func(o *options) {
		o.client = cl
	}
}

// Syncer consumes topology events and submits them to a cluster service.
type Syncer struct {
	l    *loggerx.Logger
	svc  *clusterx.Service
	conf Config
	cl   KgoClient

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSyncer(l *loggerx.Logger, svc *clusterx.Service, conf Config, opts ...Option) (*Syncer, error) {
	if l == nil {
		return nil, errorx.FailedPreconditionErrorf("logger is required")
	}
	conf = conf.withDefaults()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	s := &Syncer{l: l, svc: svc, conf: conf, cl: o.client}
	if s.cl != nil {
		return s, nil
	}

	if len(conf.Brokers) == 0 {
		return nil, errorx.InvalidArgumentErrorf("kafka brokers are required")
	}
	kopts := []kgo.Opt{
		kgo.SeedBrokers(conf.Brokers...),
		kgo.ConsumerGroup(conf.ConsumerGroup),
		kgo.ConsumeTopics(conf.Topic),
		kgo.WithLogger(kslog.New(l.Logger)),
	}
	if o.tracerProvider != nil {
		k := newKotel(o.tracerProvider, otel.GetTextMapPropagator(), otel.GetMeterProvider())
		kopts = append(kopts, kgo.WithHooks(k.Hooks()...))
	}
	cl, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, errorx.InternalErrorf("failed to create kafka client: %s", err.Error()).WithOriginalError(err)
	}
	if err := ensureTopic(context.Background(), kadm.NewClient(cl), conf); err != nil {
		cl.Close()
		return nil, err
	}
	s.cl = cl
	return s, nil
}

func ensureTopic(ctx context.Context, adm *kadm.Client, conf Config) error {
	resp, err := adm.CreateTopic(ctx, conf.Partitions, conf.ReplicationFactor, nil, conf.Topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return errorx.UnavailableErrorf("failed to create topic [%s]: %s", conf.Topic, err.Error()).WithOriginalError(err)
	}
	return nil
}

func (s *Syncer) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.MessagingSystemKey.String("kafka"),
		semconv.MessagingKafkaConsumerGroup(s.conf.ConsumerGroup),
		semconv.MessagingSourceName(s.conf.Topic),
	}
}

// Start consumes in the background until Close is called or ctx is done.
func (s *Syncer) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

func (s *Syncer) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.cl.Close()
}

func (s *Syncer) run(ctx context.Context) {
	l := s.l.WithFields(s.attributes()...)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fetches := s.cl.PollRecords(ctx, s.conf.MaxPollRecords)
		if errs := fetches.Errors(); len(errs) > 0 {
			if lo.SomeBy(errs, func(fe kgo.FetchError) bool { return errors.Is(fe.Err, context.Canceled) }) {
				l.Info(ctx, "context canceled, stopping topology syncer")
				return
			}
			err := errors.Join(lo.Map(errs, func(fe kgo.FetchError, _ int) error { return fe.Err })...)
			if lo.EveryBy(errs, func(fe kgo.FetchError) bool { return kerr.IsRetriable(fe.Err) }) {
				err = errorx.NewRetryableError(err)
			}
			if _, ok := errorx.IsRetryableError(err); ok {
				l.WithError(err).Warn(ctx, "retryable error while polling topology events")
				continue
			}
			l.WithError(err).Error(ctx, "error while polling topology events, stopping topology syncer")
			return
		}

		fetches.EachRecord(func(r *kgo.Record) {
			s.Handle(ctx, r.Value)
		})
	}
}

// Handle applies one encoded event. Events that do not apply are logged and skipped so
// that a bad event never blocks the topic.
func (s *Syncer) Handle(ctx context.Context, value []byte) {
	var ev clusterx.Event
	if err := json.Unmarshal(value, &ev); err != nil {
		s.l.Warn(ctx, "failed to unmarshal topology event", attribute.String("error", err.Error()))
		return
	}
	if err := s.svc.Submit(ctx, "kafka:"+string(ev.Type), ev.Apply); err != nil {
		s.l.Warn(ctx, "failed to apply topology event",
			attribute.String("event", string(ev.Type)),
			attribute.String("index", ev.Index),
			attribute.String("error", err.Error()),
		)
	}
}
