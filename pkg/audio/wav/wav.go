// Package wav writes and inspects canonical 44-byte-header PCM WAV files.
//
// The header layout is a wire contract: players, file writers and share
// targets depend on it byte for byte, so it is written by hand rather than by a
// general-purpose RIFF library.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// WAV format constants.
const (
	// HeaderSize is the size of a canonical WAV file header in bytes.
	HeaderSize = 44

	// FormatPCM is the audio format code for uncompressed integer PCM.
	FormatPCM = 1

	// BitsPerSample is the only bit depth this package writes.
	BitsPerSample = 16

	// fmtChunkSize is the size of the PCM fmt sub-chunk body.
	fmtChunkSize = 16
)

var (
	// ErrTooLarge is returned when the sample data does not fit the 32-bit RIFF
	// size fields.
	ErrTooLarge = errors.New("wav: data exceeds 4 GiB RIFF limit")

	// ErrInvalidHeader is returned by [ReadHeader] for a buffer that is not a
	// canonical PCM WAV file.
	ErrInvalidHeader = errors.New("wav: invalid header")
)

// Header mirrors the fields of a canonical PCM WAV header.
type Header struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	// RIFFSize is the value of the RIFF chunk size field (file size - 8).
	RIFFSize uint32
	// DataSize is the length of the data sub-chunk in bytes.
	DataSize uint32
}

// Encode writes interleaved float samples as a complete 16-bit PCM WAV file.
// Each sample is clamped to [-1, 1] and scaled with [FloatToInt16].
func Encode(samples []float32, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid sample rate %d", sampleRate)
	}
	if channels <= 0 || channels > math.MaxUint16 {
		return nil, fmt.Errorf("wav: invalid channel count %d", channels)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("wav: %d samples is not a whole number of %d-channel frames", len(samples), channels)
	}

	dataSize := uint64(len(samples)) * 2
	if dataSize > math.MaxUint32-(HeaderSize-8) {
		return nil, ErrTooLarge
	}

	out := make([]byte, HeaderSize+int(dataSize))
	putHeader(out[:HeaderSize], sampleRate, channels, uint32(dataSize))

	pcm := out[HeaderSize:]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(FloatToInt16(s)))
	}
	return out, nil
}

// FloatToInt16 clamps s to [-1, 1] and scales negative values by 32768 and
// positive values by 32767, truncating toward zero. The asymmetric scale maps
// -1 to -32768 and 1 to 32767 exactly.
func FloatToInt16(s float32) int16 {
	v := float64(s)
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	} else if v != v {
		// NaN
		v = 0
	}
	if v < 0 {
		return int16(v * 32768)
	}
	return int16(v * 32767)
}

// putHeader writes the 44-byte canonical header into b.
func putHeader(b []byte, sampleRate, channels int, dataSize uint32) {
	blockAlign := channels * BitsPerSample / 8
	byteRate := sampleRate * blockAlign

	// RIFF header
	copy(b[0:4], "RIFF")
	binary.LittleEndian.PutUint32(b[4:8], 36+dataSize)
	copy(b[8:12], "WAVE")

	// fmt subchunk
	copy(b[12:16], "fmt ")
	binary.LittleEndian.PutUint32(b[16:20], fmtChunkSize)
	binary.LittleEndian.PutUint16(b[20:22], FormatPCM)
	binary.LittleEndian.PutUint16(b[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(b[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(b[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(b[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(b[34:36], BitsPerSample)

	// data subchunk
	copy(b[36:40], "data")
	binary.LittleEndian.PutUint32(b[40:44], dataSize)
}

// ReadHeader parses and validates the canonical header at the start of b. It
// checks the chunk ids, the PCM format code, the derived byte rate and block
// align, and that the declared data size matches the bytes present.
func ReadHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes is shorter than the %d-byte header", ErrInvalidHeader, len(b), HeaderSize)
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return Header{}, fmt.Errorf("%w: missing RIFF/WAVE ids", ErrInvalidHeader)
	}
	if string(b[12:16]) != "fmt " || string(b[36:40]) != "data" {
		return Header{}, fmt.Errorf("%w: not a canonical fmt/data layout", ErrInvalidHeader)
	}

	h := Header{
		RIFFSize:      binary.LittleEndian.Uint32(b[4:8]),
		AudioFormat:   binary.LittleEndian.Uint16(b[20:22]),
		Channels:      binary.LittleEndian.Uint16(b[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(b[24:28]),
		ByteRate:      binary.LittleEndian.Uint32(b[28:32]),
		BlockAlign:    binary.LittleEndian.Uint16(b[32:34]),
		BitsPerSample: binary.LittleEndian.Uint16(b[34:36]),
		DataSize:      binary.LittleEndian.Uint32(b[40:44]),
	}

	if h.AudioFormat != FormatPCM {
		return h, fmt.Errorf("%w: audio format %d is not PCM", ErrInvalidHeader, h.AudioFormat)
	}
	if h.Channels == 0 || h.BitsPerSample == 0 {
		return h, fmt.Errorf("%w: zero channels or bit depth", ErrInvalidHeader)
	}
	if want := h.Channels * (h.BitsPerSample / 8); h.BlockAlign != want {
		return h, fmt.Errorf("%w: block align %d, want %d", ErrInvalidHeader, h.BlockAlign, want)
	}
	if want := h.SampleRate * uint32(h.BlockAlign); h.ByteRate != want {
		return h, fmt.Errorf("%w: byte rate %d, want %d", ErrInvalidHeader, h.ByteRate, want)
	}
	if int(h.DataSize) != len(b)-HeaderSize {
		return h, fmt.Errorf("%w: data size %d, have %d bytes", ErrInvalidHeader, h.DataSize, len(b)-HeaderSize)
	}
	if h.RIFFSize != 36+h.DataSize {
		return h, fmt.Errorf("%w: riff size %d, want %d", ErrInvalidHeader, h.RIFFSize, 36+h.DataSize)
	}
	return h, nil
}

// Samples returns the number of sample frames declared by h.
func (h Header) Samples() int {
	if h.BlockAlign == 0 {
		return 0
	}
	return int(h.DataSize) / int(h.BlockAlign)
}
