// Package observe provides the OpenTelemetry metric instruments used by the
// relays and the HTTP middleware that records request latency and logs each
// request with slog.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/iamvkosarev/hablaya"

// Relay kinds used as the "kind" attribute.
const (
	KindChat          = "chat"
	KindSpeech        = "speech"
	KindTranscription = "transcription"
	KindHealth        = "health"
)

// Metrics holds all metric instruments. The OTel types are safe for
// concurrent use.
type Metrics struct {
	// RelayDuration tracks upstream provider latency per relay kind.
	RelayDuration metric.Float64Histogram

	// ProviderRequests counts provider calls by kind and status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed provider calls by kind.
	ProviderErrors metric.Int64Counter

	// ChatTokens counts tokens reported by the completion provider.
	ChatTokens metric.Int64Counter

	// HTTPRequestDuration tracks request processing time by method and route.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RelayDuration, err = m.Float64Histogram("hablaya.relay.duration",
		metric.WithDescription("Latency of upstream provider calls per relay."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("hablaya.provider.requests",
		metric.WithDescription("Total provider API requests by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("hablaya.provider.errors",
		metric.WithDescription("Total provider errors by kind."),
	); err != nil {
		return nil, err
	}
	if met.ChatTokens, err = m.Int64Counter("hablaya.chat.tokens",
		metric.WithDescription("Tokens consumed by chat completions by type."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("hablaya.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// NopMetrics returns instruments that record nothing.
func NopMetrics() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}
	return m
}

// RecordProviderCall records one upstream call, its latency and, when err is
// non-nil, an error increment.
func (m *Metrics) RecordProviderCall(ctx context.Context, kind string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
	m.RelayDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(ctx context.Context, prompt, completion int) {
	m.ChatTokens.Add(ctx, int64(prompt), metric.WithAttributes(attribute.String("type", "prompt")))
	m.ChatTokens.Add(ctx, int64(completion), metric.WithAttributes(attribute.String("type", "completion")))
}
