package otelx

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	tracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"

	loggerxtest "github.com/clinia/xbulk/loggerx/test"
)

func decodeResponseBody(t *testing.T, r *http.Request) []byte {
	var reader io.ReadCloser
	switch r.Header.Get("Content-Encoding") {
	case "gzip":
		var err error
		reader, err = gzip.NewReader(r.Body)
		if err != nil {
			t.Fatal(err)
		}
	case "deflate":
		var err error
		reader, err = zlib.NewReader(r.Body)
		if err != nil {
			t.Fatal(err)
		}

	default:
		reader = r.Body
	}
	respBody, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	return respBody
}

func TestHTTPOTLPTracer(t *testing.T) {
	done := make(chan struct{})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeResponseBody(t, r)

		var res tracepb.ExportTraceServiceRequest
		err := proto.Unmarshal(body, &res)
		require.NoError(t, err, "must be able to unmarshal traces")

		resourceSpans := res.GetResourceSpans()
		spans := resourceSpans[0].GetScopeSpans()[0].GetSpans()
		assert.Equal(t, len(spans), 1)

		assert.NotEmpty(t, spans[0].GetSpanId())
		assert.NotEmpty(t, spans[0].GetTraceId())
		assert.Equal(t, "testSpan", spans[0].GetName())
		assert.Equal(t, "testAttribute", spans[0].Attributes[0].Key)

		close(done)
	}))
	defer ts.Close()

	tsu, err := url.Parse(ts.URL)
	require.NoError(t, err)

	tracerConfig := &TracerConfig{
		ServiceName: "xbulk",
		Name:        "xbulk",
		Provider:    "otel",
		Providers: TracerProvidersConfig{
			OTLP: OTLPConfig{
				Protocol:  "http",
				ServerURL: tsu.Host,
				Insecure:  true,
				Sampling: OTLPSampling{
					SamplingRatio: 1,
				},
			},
		},
	}

	tr, err := NewTracer(context.Background(), loggerxtest.NewTestLogger(t), tracerConfig)
	require.NoError(t, err)
	defer tr.Shutdown(context.Background())

	_, span := tr.Tracer().Start(context.Background(), "testSpan")
	span.SetAttributes(attribute.Bool("testAttribute", true))
	span.End()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatalf("Test server did not receive spans")
	}
}

type TraceServiceServer struct {
	tracepb.TraceServiceServer
	t    *testing.T
	done chan struct{}
}

func (s *TraceServiceServer) Export(ctx context.Context, req *tracepb.ExportTraceServiceRequest) (*tracepb.ExportTraceServiceResponse, error) {
	resourceSpans := req.GetResourceSpans()
	spans := resourceSpans[0].GetScopeSpans()[0].GetSpans()
	assert.Equal(s.t, len(spans), 1)

	assert.NotEmpty(s.t, spans[0].GetSpanId())
	assert.NotEmpty(s.t, spans[0].GetTraceId())
	assert.Equal(s.t, "testSpan", spans[0].GetName())
	assert.Equal(s.t, "testAttribute", spans[0].Attributes[0].Key)

	close(s.done)

	return &tracepb.ExportTraceServiceResponse{}, nil
}

func TestGRPCOTLPTracer(t *testing.T) {
	done := make(chan struct{})

	grpcServer := grpc.NewServer()
	service := &TraceServiceServer{t: t, done: done}

	tracepb.RegisterTraceServiceServer(grpcServer, service)
	lis, err := net.Listen("tcp", "localhost:0") // Listen on a random available port
	assert.NoError(t, err)
	go func() {
		_ = grpcServer.Serve(lis)
	}()
	defer grpcServer.Stop()

	tracerConfig := &TracerConfig{
		ServiceName: "xbulk",
		Name:        "xbulk",
		Provider:    "otel",
		Providers: TracerProvidersConfig{
			OTLP: OTLPConfig{
				Protocol:  "grpc",
				ServerURL: lis.Addr().String(),
				Insecure:  true,
				Sampling: OTLPSampling{
					SamplingRatio: 1,
				},
			},
		},
	}

	tr, err := NewTracer(context.Background(), loggerxtest.NewTestLogger(t), tracerConfig)
	require.NoError(t, err)
	defer tr.Shutdown(context.Background())

	_, span := tr.Tracer().Start(context.Background(), "testSpan")
	span.SetAttributes(attribute.Bool("testAttribute", true))
	span.End()

	select {
	case <-service.done:
	case <-time.After(15 * time.Second):
		t.Fatalf("Test server did not receive spans")
	}
}

func TestStdoutTracer(t *testing.T) {
	buf := new(bytes.Buffer)
	tr, err := NewTracer(context.Background(), loggerxtest.NewTestLogger(t), &TracerConfig{
		ServiceName: "xbulk",
		Name:        "xbulk",
		Provider:    "stdout",
		Providers: TracerProvidersConfig{
			Stdout: StdoutConfig{Writer: buf},
		},
	})
	require.NoError(t, err)
	require.True(t, tr.IsLoaded())

	_, span := tr.Tracer().Start(context.Background(), "bulk.execute")
	span.End()
	require.NoError(t, tr.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name":"bulk.execute"`)
}

func TestNewTracer(t *testing.T) {
	t.Run("should fall back to a noop tracer without provider", func(t *testing.T) {
		tr, err := NewTracer(context.Background(), loggerxtest.NewTestLogger(t), &TracerConfig{Name: "xbulk"})
		require.NoError(t, err)
		assert.True(t, tr.IsLoaded())
		assert.Equal(t, tr.Tracer(), tr.Provider().Tracer("anything"))
		assert.NoError(t, tr.Shutdown(context.Background()))
	})

	t.Run("should reject unknown providers", func(t *testing.T) {
		_, err := NewTracer(context.Background(), loggerxtest.NewTestLogger(t), &TracerConfig{Provider: "zipkin"})
		assert.EqualError(t, err, "[INVALID_ARGUMENT] unknown tracer provider [zipkin]")
	})

	t.Run("should propagate b3 and jaeger headers", func(t *testing.T) {
		tr := NewNoopTracer("xbulk")
		carrier := propagation.MapCarrier{
			"uber-trace-id": "4bf92f3577b34da6a3ce929d0e0e4736:00f067aa0ba902b7:0:1",
		}
		ctx := tr.Extract(context.Background(), carrier)

		out := propagation.MapCarrier{}
		tr.Inject(ctx, out)
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", out.Get("x-b3-traceid"))
		assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", out.Get("traceparent"))
	})
}
