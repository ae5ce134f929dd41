package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/MrWong99/singalong/pkg/audio"
)

// MP3 returns the MPEG-1/2 Layer III format. The decoder always produces
// stereo, so mono files come back with two identical channels.
func MP3() Format {
	return Format{Name: "mp3", Sniff: sniffMP3, Decode: decodeMP3}
}

func sniffMP3(data []byte) bool {
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return true
	}
	// MPEG audio frame sync: 11 set bits, layer III.
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 && data[1]&0x06 == 0x02
}

func decodeMP3(data []byte) (*audio.Buffer, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating MP3 decoder: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("decoding MP3: %w", err)
	}
	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}

	// go-mp3 emits signed 16-bit little-endian stereo.
	return audio.PCM16ToBuffer(pcm, decoder.SampleRate(), 2)
}
