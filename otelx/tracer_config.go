package otelx

import (
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

type OTLPConfig struct {
	// Protocol is either "grpc" or "http".
	Protocol  string       `json:"protocol"`
	ServerURL string       `json:"server_url"`
	Insecure  bool         `json:"insecure"`
	Sampling  OTLPSampling `json:"sampling"`
}

type OTLPSampling struct {
	SamplingRatio float64 `json:"sampling_ratio"`
}

// JaegerConfig sends spans to a Jaeger collector over OTLP/HTTP and polls the collector
// for sampling strategies.
type JaegerConfig struct {
	ServerURL string         `json:"server_url"`
	Insecure  bool           `json:"insecure"`
	Sampling  JaegerSampling `json:"sampling"`
}

type JaegerSampling struct {
	ServerURL       string        `json:"server_url"`
	TraceIdRatio    float64       `json:"trace_id_ratio"`
	RefreshInterval time.Duration `json:"refresh_interval"`
}

type StdoutConfig struct {
	Pretty bool `json:"pretty"`
	// Writer replaces os.Stdout.
	Writer io.Writer `json:"-"`
}

type TracerProvidersConfig struct {
	Jaeger JaegerConfig `json:"jaeger"`
	OTLP   OTLPConfig   `json:"otlp"`
	Stdout StdoutConfig `json:"stdout"`
}

type TracerConfig struct {
	ServiceName        string                `json:"service_name"`
	Name               string                `json:"name"`
	Provider           string                `json:"provider"`
	Providers          TracerProvidersConfig `json:"providers"`
	ResourceAttributes []attribute.KeyValue  `json:"-"`
}
