// Package observe provides the server's observability primitives:
// OpenTelemetry metrics and tracing, trace-correlated structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported via
// the Prometheus bridge set up by [InitProvider], so they can be scraped at
// /metrics. Mix-engine metrics are recorded by the mixdown package itself;
// this package covers the HTTP, session and storage layers.
//
// A package-level [DefaultMetrics] instance is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for server metrics.
const meterName = "github.com/MrWong99/singalong"

// Metrics holds the server's metric instruments. All fields are safe for
// concurrent use.
type Metrics struct {
	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, route, status.
	HTTPRequestDuration metric.Float64Histogram

	// LyricsParses counts subtitle parses. Attribute: result ("complete" or
	// "truncated").
	LyricsParses metric.Int64Counter

	// ActiveSessions tracks open sing-along sessions.
	ActiveSessions metric.Int64UpDownCounter

	// FollowStreams tracks connected lyric follow websockets.
	FollowStreams metric.Int64UpDownCounter

	// MixRequests counts mix requests at the session layer. Attribute: status
	// ("ok", "rejected", "failed").
	MixRequests metric.Int64Counter

	// TakeOps counts take store operations. Attributes: op, status.
	TakeOps metric.Int64Counter

	// TakeBytes records the size of stored takes.
	TakeBytes metric.Int64Histogram
}

// latencyBuckets are histogram boundaries in seconds. Mix uploads of several
// minutes of audio land in the upper buckets.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// takeSizeBuckets are histogram boundaries in bytes, roughly 1 s to 15 min of
// 22050 Hz mono 16-bit audio.
var takeSizeBuckets = []float64{
	44_100, 441_000, 2_646_000, 5_292_000, 13_230_000, 26_460_000, 39_690_000,
}

// NewMetrics creates a fully initialised [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.HTTPRequestDuration, err = m.Float64Histogram("singalong.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LyricsParses, err = m.Int64Counter("singalong.lyrics.parses",
		metric.WithDescription("Subtitle documents parsed, by whether parsing stopped early."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("singalong.sessions.active",
		metric.WithDescription("Number of open sing-along sessions."),
	); err != nil {
		return nil, err
	}
	if met.FollowStreams, err = m.Int64UpDownCounter("singalong.follow.streams",
		metric.WithDescription("Number of connected lyric follow streams."),
	); err != nil {
		return nil, err
	}
	if met.MixRequests, err = m.Int64Counter("singalong.session.mixes",
		metric.WithDescription("Mix requests handled by sessions, by status."),
	); err != nil {
		return nil, err
	}
	if met.TakeOps, err = m.Int64Counter("singalong.takes.ops",
		metric.WithDescription("Take store operations by op and status."),
	); err != nil {
		return nil, err
	}
	if met.TakeBytes, err = m.Int64Histogram("singalong.takes.size",
		metric.WithDescription("Size of stored takes."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(takeSizeBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call from [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordLyricsParse records one parse with its outcome.
func (m *Metrics) RecordLyricsParse(ctx context.Context, truncated bool) {
	result := "complete"
	if truncated {
		result = "truncated"
	}
	m.LyricsParses.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordMix records one session-level mix request.
func (m *Metrics) RecordMix(ctx context.Context, status string) {
	m.MixRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordTakeOp records one take store operation.
func (m *Metrics) RecordTakeOp(ctx context.Context, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.TakeOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("status", status),
	))
}
