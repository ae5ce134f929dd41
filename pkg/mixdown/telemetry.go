package mixdown

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/MrWong99/singalong/pkg/mixdown"

// stageBuckets are histogram boundaries in seconds. A long backing track can
// take several seconds to decode.
var stageBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

type instruments struct {
	tracer trace.Tracer

	stageDuration metric.Float64Histogram
	mixDuration   metric.Float64Histogram
	outcomes      metric.Int64Counter
	decodes       metric.Int64Counter
	active        metric.Int64UpDownCounter
	outputSeconds metric.Float64Histogram
}

func newInstruments(mp metric.MeterProvider, tp trace.TracerProvider) (*instruments, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	m := mp.Meter(instrumentationName)
	ins := &instruments{tracer: tp.Tracer(instrumentationName)}

	var err error
	if ins.stageDuration, err = m.Float64Histogram("singalong.mix.stage.duration",
		metric.WithDescription("Time spent in each mix stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if ins.mixDuration, err = m.Float64Histogram("singalong.mix.duration",
		metric.WithDescription("End-to-end mix latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if ins.outcomes, err = m.Int64Counter("singalong.mix.outcomes",
		metric.WithDescription("Finished mixes by status and failing stage."),
	); err != nil {
		return nil, err
	}
	if ins.decodes, err = m.Int64Counter("singalong.decode.tracks",
		metric.WithDescription("Decoded input tracks by track and detected format."),
	); err != nil {
		return nil, err
	}
	if ins.active, err = m.Int64UpDownCounter("singalong.mix.active",
		metric.WithDescription("Number of mixes currently running."),
	); err != nil {
		return nil, err
	}
	if ins.outputSeconds, err = m.Float64Histogram("singalong.mix.output.length",
		metric.WithDescription("Length of the rendered mix."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(15, 30, 60, 120, 180, 240, 300, 450, 600, 900),
	); err != nil {
		return nil, err
	}
	return ins, nil
}

// noopInstruments is used when instrument creation fails so a broken meter
// provider never prevents mixing.
func noopInstruments(tp trace.TracerProvider) *instruments {
	ins, _ := newInstruments(noop.NewMeterProvider(), tp)
	return ins
}

func (ins *instruments) recordStage(ctx context.Context, s Stage, start time.Time) {
	ins.stageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", s.String())))
}

func (ins *instruments) recordOutcome(ctx context.Context, start time.Time, err error) {
	status, stage := "ok", ""
	if err != nil {
		status = "error"
		if me, ok := err.(*Error); ok {
			stage = me.Stage.String()
		}
	}
	attrs := metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("stage", stage),
	)
	ins.outcomes.Add(ctx, 1, attrs)
	ins.mixDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

func (ins *instruments) recordDecode(ctx context.Context, track Track, format string) {
	ins.decodes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("track", string(track)),
		attribute.String("format", format),
	))
}
