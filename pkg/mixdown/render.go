package mixdown

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/singalong/pkg/audio"
)

// outputLength returns the number of target-rate samples for a mix. It takes
// the longer input in its own sample count and rescales it by the backing
// track's rate, so the result covers the longer of the two tracks when both
// share a rate.
func outputLength(backing, vocal *audio.Buffer) int {
	n := max(backing.Len(), vocal.Len())
	return int(int64(n) * TargetSampleRate / int64(backing.SampleRate))
}

// render mixes the two decoded tracks into a mono buffer at TargetSampleRate.
// Samples are summed without limiting; values outside [-1, 1] are clamped
// later by the encoder.
func (e *Engine) render(backing, vocal *audio.Buffer) ([]float32, error) {
	if err := backing.Validate(); err != nil {
		return nil, fmt.Errorf("backing: %w", err)
	}
	if err := vocal.Validate(); err != nil {
		return nil, fmt.Errorf("vocal: %w", err)
	}

	n := outputLength(backing, vocal)
	if n <= 0 {
		return nil, errors.New("mix has no output samples")
	}
	if e.maxDuration > 0 {
		limit := int64(e.maxDuration) * TargetSampleRate / int64(time.Second)
		if int64(n) > limit {
			return nil, fmt.Errorf("output of %d samples exceeds the %s limit", n, e.maxDuration)
		}
	}

	target := audio.Format{SampleRate: TargetSampleRate, Channels: 1}
	back, err := (&audio.Converter{Target: target, Logger: e.log}).Convert(backing)
	if err != nil {
		return nil, fmt.Errorf("backing: %w", err)
	}
	voc, err := (&audio.Converter{Target: target, Logger: e.log}).Convert(e.alignVocal(vocal))
	if err != nil {
		return nil, fmt.Errorf("vocal: %w", err)
	}

	out := make([]float32, n)
	b, v := back.Channels[0], voc.Channels[0]
	for i := range min(n, len(b)) {
		out[i] = b[i] * e.backingGain
	}
	for i := range min(n, len(v)) {
		out[i] += v[i] * e.vocalGain
	}
	return out, nil
}

// alignVocal downmixes the vocal and drops its first latencyOffset of samples
// when the recording is longer than the offset. The result stays at the
// recording's own rate.
func (e *Engine) alignVocal(vocal *audio.Buffer) *audio.Buffer {
	mono := audio.Downmix(vocal)
	if e.latencyOffset > 0 && vocal.Duration() > e.latencyOffset {
		skip := int(int64(vocal.SampleRate) * int64(e.latencyOffset) / int64(time.Second))
		mono = mono[min(skip, len(mono)):]
	}
	return &audio.Buffer{SampleRate: vocal.SampleRate, Channels: [][]float32{mono}}
}
