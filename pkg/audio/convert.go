package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// Converter converts decoded buffers to a target format. It logs a warning
// the first time it sees a format different from the target.
// Create one per track; not designed for shared use across goroutines.
type Converter struct {
	Target Format

	// Logger receives the mismatch notice. Nil means [slog.Default].
	Logger *slog.Logger

	warnedMismatch sync.Once
}

// Convert returns buf in the target format. If the source already matches, buf
// is returned unchanged (zero allocation).
// Conversion order: channel convert first, then resample, so a stereo source
// headed for a mono target is only resampled once.
func (c *Converter) Convert(buf *Buffer) (*Buffer, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if c.Target.SampleRate <= 0 || c.Target.Channels <= 0 {
		return nil, fmt.Errorf("audio: invalid target format %s", c.Target)
	}

	src := buf.Format()
	if src == c.Target {
		return buf, nil
	}

	c.warnedMismatch.Do(func() {
		log := c.Logger
		if log == nil {
			log = slog.Default()
		}
		log.Debug("audio format mismatch: converting",
			"from", src.String(),
			"to", c.Target.String(),
		)
	})

	// Step 1: channel conversion.
	var channels [][]float32
	switch {
	case src.Channels == c.Target.Channels:
		channels = buf.Channels
	case c.Target.Channels == 1:
		channels = [][]float32{Downmix(buf)}
	case src.Channels == 1:
		channels = make([][]float32, c.Target.Channels)
		for i := range channels {
			channels[i] = buf.Channels[0]
		}
	default:
		return nil, fmt.Errorf("audio: unsupported channel conversion %s -> %s", src, c.Target)
	}

	// Step 2: resample.
	if src.SampleRate != c.Target.SampleRate {
		resampled := make([][]float32, len(channels))
		for i, ch := range channels {
			resampled[i] = Resample(ch, src.SampleRate, c.Target.SampleRate)
		}
		channels = resampled
	}

	return &Buffer{SampleRate: c.Target.SampleRate, Channels: channels}, nil
}

// Downmix averages all channels of buf into a single mono channel. A mono
// buffer's only channel is returned as-is.
func Downmix(buf *Buffer) []float32 {
	switch buf.NumChannels() {
	case 0:
		return nil
	case 1:
		return buf.Channels[0]
	case 2:
		l, r := buf.Channels[0], buf.Channels[1]
		out := make([]float32, len(l))
		for i := range out {
			out[i] = (l[i] + r[i]) * 0.5
		}
		return out
	}

	n := buf.Len()
	inv := float32(1) / float32(buf.NumChannels())
	out := make([]float32, n)
	for i := range n {
		var sum float32
		for _, ch := range buf.Channels {
			sum += ch[i]
		}
		out[i] = sum * inv
	}
	return out
}

// Resample converts samples from srcRate to dstRate using linear
// interpolation. The output has floor(len * dstRate / srcRate) samples. If
// either rate is non-positive or the rates are equal, samples is returned
// unchanged.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		return samples
	}
	n := len(samples)
	dstN := int(int64(n) * int64(dstRate) / int64(srcRate))
	if dstN == 0 {
		return nil
	}

	out := make([]float32, dstN)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstN {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= n {
			// Rounding at the tail; hold the last sample.
			out[i] = samples[n-1]
			continue
		}
		frac := float32(pos - float64(idx))
		s0 := samples[idx]
		s1 := s0
		if idx+1 < n {
			s1 = samples[idx+1]
		}
		out[i] = s0 + (s1-s0)*frac
	}
	return out
}

// PCM16ToBuffer converts interleaved little-endian signed 16-bit PCM into a
// planar float buffer. A trailing partial frame is dropped.
func PCM16ToBuffer(pcm []byte, sampleRate, channels int) (*Buffer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("audio: invalid channel count %d", channels)
	}
	frameBytes := 2 * channels
	frames := len(pcm) / frameBytes
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := range frames {
		base := i * frameBytes
		for c := range channels {
			off := base + c*2
			s := int16(uint16(pcm[off]) | uint16(pcm[off+1])<<8)
			out[c][i] = float32(s) / 32768
		}
	}
	return &Buffer{SampleRate: sampleRate, Channels: out}, nil
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
