//go:build opus

package decode

import (
	"encoding/binary"
	"errors"
	"fmt"

	"layeh.com/gopus"

	"github.com/MrWong99/singalong/pkg/audio"
)

const (
	// opusSampleRate is the rate Ogg/Opus granule positions are expressed in.
	opusSampleRate = 48000

	// opusMaxFrameSize is the largest Opus frame (120 ms at 48 kHz) per channel.
	opusMaxFrameSize = 5760

	opusHeadSize = 19
)

func init() {
	extraBuiltins = append(extraBuiltins, Opus())
}

// Opus returns the Ogg/Opus format. Only mono and stereo streams (channel
// mapping family 0) are supported. Output is always at 48 kHz with the
// encoder pre-skip removed and the tail trimmed to the final granule position.
func Opus() Format {
	return Format{Name: "opus", Sniff: sniffOgg, Decode: decodeOpus}
}

type opusHead struct {
	Channels int
	PreSkip  int
}

func parseOpusHead(p []byte) (opusHead, error) {
	if len(p) < opusHeadSize || string(p[0:8]) != "OpusHead" {
		return opusHead{}, errors.New("missing OpusHead packet")
	}
	if p[8]>>4 != 0 {
		return opusHead{}, fmt.Errorf("unsupported OpusHead version %d", p[8])
	}
	h := opusHead{
		Channels: int(p[9]),
		PreSkip:  int(binary.LittleEndian.Uint16(p[10:12])),
	}
	if mapping := p[18]; mapping != 0 {
		return opusHead{}, fmt.Errorf("unsupported channel mapping family %d", mapping)
	}
	if h.Channels != 1 && h.Channels != 2 {
		return opusHead{}, fmt.Errorf("unsupported channel count %d", h.Channels)
	}
	return h, nil
}

func decodeOpus(data []byte) (*audio.Buffer, error) {
	st, err := demuxOgg(data)
	if err != nil {
		return nil, err
	}
	if len(st.Packets) < 2 {
		return nil, errors.New("ogg stream is missing Opus headers")
	}
	head, err := parseOpusHead(st.Packets[0].Data)
	if err != nil {
		return nil, err
	}
	if tags := st.Packets[1].Data; len(tags) < 8 || string(tags[0:8]) != "OpusTags" {
		return nil, errors.New("missing OpusTags packet")
	}

	dec, err := gopus.NewDecoder(opusSampleRate, head.Channels)
	if err != nil {
		return nil, fmt.Errorf("creating opus decoder: %w", err)
	}

	var pcm []int16
	for i, pkt := range st.Packets[2:] {
		frame, err := dec.Decode(pkt.Data, opusMaxFrameSize, false)
		if err != nil {
			return nil, fmt.Errorf("decoding opus packet %d: %w", i, err)
		}
		pcm = append(pcm, frame...)
	}

	frames := len(pcm) / head.Channels
	start := min(head.PreSkip, frames)
	end := frames
	if st.LastGranule >= 0 {
		if g := int(st.LastGranule) - head.PreSkip; g >= 0 && start+g < end {
			end = start + g
		}
	}

	samples := make([]float32, (end-start)*head.Channels)
	for i, v := range pcm[start*head.Channels : end*head.Channels] {
		samples[i] = float32(v) / 32768
	}
	return &audio.Buffer{SampleRate: opusSampleRate, Channels: audio.Deinterleave(samples, head.Channels)}, nil
}
