// Package audio defines the in-memory sample representation shared by the
// decoders, the mixdown engine and the WAV encoder, plus the channel and
// sample-rate conversions between them.
//
// Samples are normalised float32 values nominally in [-1, 1], stored planar
// (one slice per channel). Values outside that range are legal in
// intermediate buffers; clamping happens only when encoding to integer PCM.
package audio

import (
	"errors"
	"fmt"
	"time"
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns e.g. "22050Hz mono".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// Buffer is a decoded audio track. It is created by a decoder, consumed by the
// mixdown step and discarded afterwards; it is never persisted.
type Buffer struct {
	// SampleRate is the native rate reported by the decoder, in Hz.
	SampleRate int

	// Channels holds one sample slice per channel. All slices have the same
	// length.
	Channels [][]float32
}

// Len returns the number of samples per channel.
func (b *Buffer) Len() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// NumChannels returns the channel count.
func (b *Buffer) NumChannels() int {
	if b == nil {
		return 0
	}
	return len(b.Channels)
}

// Format returns the buffer's sample rate and channel count.
func (b *Buffer) Format() Format {
	return Format{SampleRate: b.SampleRate, Channels: b.NumChannels()}
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(b.Len()) * int64(time.Second) / int64(b.SampleRate))
}

// Validate checks that the buffer has a positive sample rate, at least one
// channel, and equal-length channels.
func (b *Buffer) Validate() error {
	if b == nil {
		return errors.New("audio: nil buffer")
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %d", b.SampleRate)
	}
	if len(b.Channels) == 0 {
		return errors.New("audio: buffer has no channels")
	}
	n := len(b.Channels[0])
	for i, ch := range b.Channels[1:] {
		if len(ch) != n {
			return fmt.Errorf("audio: channel %d has %d samples, channel 0 has %d", i+1, len(ch), n)
		}
	}
	return nil
}

// Deinterleave splits interleaved samples into planar channels. Trailing
// samples that do not form a full frame are dropped.
func Deinterleave(interleaved []float32, channels int) [][]float32 {
	if channels <= 0 {
		return nil
	}
	frames := len(interleaved) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := range frames {
		base := i * channels
		for c := range channels {
			out[c][i] = interleaved[base+c]
		}
	}
	return out
}
