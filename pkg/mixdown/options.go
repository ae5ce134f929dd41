package mixdown

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Option configures an [Engine] at construction time.
type Option func(*Engine)

// WithDecoder replaces the format-sniffing decoder. The default is
// [decode.Default].
func WithDecoder(d Decoder) Option {
	return func(e *Engine) { e.decoder = d }
}

// WithBackingGain sets the linear gain applied to the backing track.
func WithBackingGain(g float32) Option {
	return func(e *Engine) { e.backingGain = g }
}

// WithVocalGain sets the linear gain applied to the vocal track.
func WithVocalGain(g float32) Option {
	return func(e *Engine) { e.vocalGain = g }
}

// WithLatencyOffset sets how far the vocal is advanced to compensate for the
// recording start delay. Zero disables the compensation.
func WithLatencyOffset(d time.Duration) Option {
	return func(e *Engine) { e.latencyOffset = max(d, 0) }
}

// WithMaxDuration caps the output length. Mixes whose output would exceed it
// fail in the rendering stage. Zero or negative removes the cap.
func WithMaxDuration(d time.Duration) Option {
	return func(e *Engine) { e.maxDuration = d }
}

// WithStageHook registers fn to be called on every stage transition. fn runs
// on the mixing goroutine and must not block.
func WithStageHook(fn func(Stage)) Option {
	return func(e *Engine) { e.hook = fn }
}

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMeterProvider sets the meter provider for engine metrics. The default is
// the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meterProvider = mp }
}

// WithTracerProvider sets the tracer provider for engine spans. The default is
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = tp }
}
