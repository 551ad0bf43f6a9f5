package otelx

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
)

type OTLPMeterConfig struct {
	Protocol  string `json:"protocol"`
	ServerURL string `json:"server_url"`
	Insecure  bool   `json:"insecure"`
	// Interval between two exports. The SDK default applies when zero.
	Interval time.Duration `json:"interval"`
}

type PrometheusConfig struct {
	Namespace string `json:"namespace"`
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer `json:"-"`
}

type MeterProvidersConfig struct {
	OTLP       OTLPMeterConfig  `json:"otlp"`
	Prometheus PrometheusConfig `json:"prometheus"`
	Stdout     StdoutConfig     `json:"stdout"`
}

type MeterConfig struct {
	ServiceName        string               `json:"service_name"`
	Name               string               `json:"name"`
	Provider           string               `json:"provider"`
	Providers          MeterProvidersConfig `json:"providers,omitempty"`
	ResourceAttributes []attribute.KeyValue `json:"-"`
}
