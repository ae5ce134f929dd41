// Package mixdown renders a backing track and a vocal recording into a single
// mono 16-bit PCM WAV file.
//
// A mix call decodes both inputs in-process, downmixes and resamples them to
// [TargetSampleRate], advances the vocal by a fixed latency offset, applies
// per-track gain, sums the two signals and encodes the result. The output
// format is fixed; gains, offset and the duration cap are chosen when the
// [Engine] is built.
//
// An Engine holds no per-call state. Every call allocates its own buffers, so
// one Engine may serve concurrent callers. A call cannot be cancelled once it
// has started: the context only carries trace and log correlation.
package mixdown

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/singalong/pkg/audio"
	"github.com/MrWong99/singalong/pkg/audio/decode"
	"github.com/MrWong99/singalong/pkg/audio/wav"
)

// Output format. These are not configurable.
const (
	TargetSampleRate = 22050
	TargetChannels   = 1
)

// Defaults for the tunable mix parameters.
const (
	DefaultBackingGain   float32 = 0.7
	DefaultVocalGain     float32 = 2.0
	DefaultLatencyOffset         = 150 * time.Millisecond
	DefaultMaxDuration           = 15 * time.Minute
)

// Decoder turns an encoded blob into samples and reports the detected format.
// [*decode.Registry] satisfies it.
type Decoder interface {
	Decode(data []byte) (*audio.Buffer, string, error)
}

// Request carries the two encoded inputs of a mix. The engine does not retain
// either slice after the call returns.
type Request struct {
	Backing []byte
	Vocal   []byte
}

// Result is the outcome of an asynchronous mix. Exactly one of WAV or Err is
// set.
type Result struct {
	WAV []byte
	Err error
}

// Engine mixes backing and vocal tracks. Create one with [New].
type Engine struct {
	decoder       Decoder
	backingGain   float32
	vocalGain     float32
	latencyOffset time.Duration
	maxDuration   time.Duration
	hook          func(Stage)
	log           *slog.Logger

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	ins            *instruments
}

// New returns an Engine with the default gains, offset and duration cap,
// modified by opts.
func New(opts ...Option) *Engine {
	e := &Engine{
		backingGain:   DefaultBackingGain,
		vocalGain:     DefaultVocalGain,
		latencyOffset: DefaultLatencyOffset,
		maxDuration:   DefaultMaxDuration,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.decoder == nil {
		e.decoder = decode.Default()
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	ins, err := newInstruments(e.meterProvider, e.tracerProvider)
	if err != nil {
		e.log.Warn("mixdown: metric instruments unavailable", "err", err)
		ins = noopInstruments(e.tracerProvider)
	}
	e.ins = ins
	return e
}

// BackingGain returns the gain applied to the backing track.
func (e *Engine) BackingGain() float32 { return e.backingGain }

// VocalGain returns the gain applied to the vocal track.
func (e *Engine) VocalGain() float32 { return e.vocalGain }

// LatencyOffset returns how far the vocal is advanced.
func (e *Engine) LatencyOffset() time.Duration { return e.latencyOffset }

// Mix decodes, renders and encodes req. It returns a complete WAV file or a
// non-nil *[Error]; never both and never a partial file.
func (e *Engine) Mix(ctx context.Context, req Request) ([]byte, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	ctx, span := e.ins.tracer.Start(ctx, "mixdown.Mix", trace.WithAttributes(
		attribute.Int("mix.backing.bytes", len(req.Backing)),
		attribute.Int("mix.vocal.bytes", len(req.Vocal)),
	))
	defer span.End()

	e.ins.active.Add(ctx, 1)
	defer e.ins.active.Add(ctx, -1)

	out, err := e.mix(ctx, req)
	e.ins.recordOutcome(ctx, start, err)
	if err != nil {
		e.transition(StageFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.WarnContext(ctx, "mix failed", "err", err, "elapsed", time.Since(start))
		return nil, err
	}
	e.transition(StageDone)
	e.log.DebugContext(ctx, "mix finished", "bytes", len(out), "elapsed", time.Since(start))
	return out, nil
}

func (e *Engine) mix(ctx context.Context, req Request) ([]byte, error) {
	e.transition(StageDecoding)
	backing, vocal, err := e.decodeTracks(ctx, req)
	if err != nil {
		return nil, err
	}

	e.transition(StageRendering)
	samples, err := runStage(ctx, e, StageRendering, func() ([]float32, error) {
		return e.render(backing, vocal)
	})
	if err != nil {
		return nil, &Error{Stage: StageRendering, Err: err}
	}
	e.ins.outputSeconds.Record(ctx, float64(len(samples))/TargetSampleRate)

	e.transition(StageEncoding)
	out, err := runStage(ctx, e, StageEncoding, func() ([]byte, error) {
		return wav.Encode(samples, TargetSampleRate, TargetChannels)
	})
	if err != nil {
		return nil, &Error{Stage: StageEncoding, Err: err}
	}
	return out, nil
}

// decodeTracks decodes both inputs concurrently. When both fail the backing
// error is reported.
func (e *Engine) decodeTracks(ctx context.Context, req Request) (backing, vocal *audio.Buffer, err error) {
	ctx, span := e.ins.tracer.Start(ctx, "mixdown.decode")
	defer span.End()
	start := time.Now()
	defer e.ins.recordStage(ctx, StageDecoding, start)

	var backErr, vocErr error
	var g errgroup.Group
	g.Go(func() error {
		backing, backErr = e.decodeTrack(ctx, TrackBacking, req.Backing)
		return backErr
	})
	g.Go(func() error {
		vocal, vocErr = e.decodeTrack(ctx, TrackVocal, req.Vocal)
		return vocErr
	})
	if err := g.Wait(); err != nil {
		if backErr == nil {
			err = vocErr
		} else {
			err = backErr
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	return backing, vocal, nil
}

func (e *Engine) decodeTrack(ctx context.Context, track Track, data []byte) (*audio.Buffer, error) {
	buf, format, err := e.decoder.Decode(data)
	if err != nil {
		return nil, &Error{Stage: StageDecoding, Track: track, Err: err}
	}
	e.ins.recordDecode(ctx, track, format)
	e.log.DebugContext(ctx, "track decoded",
		"track", track,
		"format", format,
		"audio", buf.Format().String(),
		"duration", buf.Duration(),
	)
	return buf, nil
}

// runStage runs fn inside a child span and records its duration.
func runStage[T any](ctx context.Context, e *Engine, s Stage, fn func() (T, error)) (T, error) {
	ctx, span := e.ins.tracer.Start(ctx, "mixdown."+s.String())
	defer span.End()
	start := time.Now()
	out, err := fn()
	e.ins.recordStage(ctx, s, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (e *Engine) transition(s Stage) {
	if e.hook != nil {
		e.hook(s)
	}
}
