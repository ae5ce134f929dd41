package decode

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-audio/wav"

	"github.com/MrWong99/singalong/pkg/audio"
)

// WAV audio format codes accepted by the decoder.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// WAV returns the RIFF/WAVE integer PCM format. It accepts 8, 16, 24 and 32-bit
// samples at any rate and channel count.
func WAV() Format {
	return Format{Name: "wav", Sniff: sniffWAV, Decode: decodeWAV}
}

func sniffWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func decodeWAV(data []byte) (*audio.Buffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("unsupported WAV audio format %d", dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, errors.New("WAV file declares no channels")
	}

	channels := buf.Format.NumChannels
	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}

	var (
		offset float32
		scale  float32
	)
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned with 128 as silence.
		offset, scale = 128, 1.0/128
	case 16, 24, 32:
		scale = 1 / float32(int64(1)<<(bitDepth-1))
	default:
		return nil, fmt.Errorf("unsupported WAV bit depth %d", bitDepth)
	}

	frames := len(buf.Data) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := range frames {
		base := i * channels
		for c := range channels {
			out[c][i] = (float32(buf.Data[base+c]) - offset) * scale
		}
	}
	return &audio.Buffer{SampleRate: buf.Format.SampleRate, Channels: out}, nil
}
