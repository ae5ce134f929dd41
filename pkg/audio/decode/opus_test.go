//go:build opus

package decode

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"layeh.com/gopus"
)

func opusHeadPacket(channels, preSkip int) []byte {
	p := make([]byte, opusHeadSize)
	copy(p, "OpusHead")
	p[8] = 1
	p[9] = byte(channels)
	binary.LittleEndian.PutUint16(p[10:12], uint16(preSkip))
	binary.LittleEndian.PutUint32(p[12:16], 48000)
	return p
}

// encodeOggOpus builds a single-page Ogg/Opus stream from 20 ms mono frames.
func encodeOggOpus(t *testing.T, frames int, preSkip int) []byte {
	t.Helper()
	const frameSize = 960

	enc, err := gopus.NewEncoder(opusSampleRate, 1, gopus.Audio)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}

	head := opusHeadPacket(1, preSkip)
	tags := []byte("OpusTags\x00\x00\x00\x00\x00\x00\x00\x00")

	var streamHeaders, audioPages []byte
	streamHeaders = append(streamHeaders, oggPage(1, 0, 0x02, 0, lace(len(head)), head)...)
	streamHeaders = append(streamHeaders, oggPage(1, 1, 0, 0, lace(len(tags)), tags)...)

	pcm := make([]int16, frameSize)
	for i := range pcm {
		pcm[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/opusSampleRate))
	}
	var lacing, body []byte
	for range frames {
		pkt, err := enc.Encode(pcm, frameSize, 4000)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		lacing = append(lacing, lace(len(pkt))...)
		body = append(body, pkt...)
	}
	granule := int64(frames*frameSize - 100)
	audioPages = oggPage(1, 2, oggFlagEOS, granule, lacing, body)

	return append(streamHeaders, audioPages...)
}

func TestDefault_IncludesOpus(t *testing.T) {
	t.Parallel()

	name, err := Default().Detect([]byte("OggS\x00\x02"))
	if err != nil || name != "opus" {
		t.Fatalf("Detect = (%q, %v), want opus", name, err)
	}
}

func TestDecodeOpus_TrimsPreSkipAndTail(t *testing.T) {
	t.Parallel()

	const preSkip = 312
	data := encodeOggOpus(t, 5, preSkip)

	buf, name, err := Default().Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if name != "opus" || buf.SampleRate != opusSampleRate || buf.NumChannels() != 1 {
		t.Fatalf("unexpected result %q %s", name, buf.Format())
	}
	// granule = 5*960 - 100, minus the pre-skip.
	if want := 5*960 - 100 - preSkip; buf.Len() != want {
		t.Errorf("Len = %d, want %d", buf.Len(), want)
	}
}

func TestParseOpusHead_Rejects(t *testing.T) {
	t.Parallel()

	surround := opusHeadPacket(6, 0)
	surround[18] = 1

	tests := map[string][]byte{
		"short":     []byte("OpusHead"),
		"bad magic": bytes.Replace(opusHeadPacket(1, 0), []byte("OpusHead"), []byte("OpusTags"), 1),
		"surround":  surround,
		"zero ch":   opusHeadPacket(0, 0),
	}
	for name, p := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := parseOpusHead(p); err == nil {
				t.Error("expected error")
			}
		})
	}
}
