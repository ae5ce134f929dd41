package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// oggPage builds a single page with a valid checksum from pre-split segments.
func oggPage(serial, seq uint32, flags byte, granule int64, lacing []byte, body []byte) []byte {
	p := make([]byte, oggHeaderSize+len(lacing)+len(body))
	copy(p[0:4], "OggS")
	p[5] = flags
	binary.LittleEndian.PutUint64(p[6:14], uint64(granule))
	binary.LittleEndian.PutUint32(p[14:18], serial)
	binary.LittleEndian.PutUint32(p[18:22], seq)
	p[26] = byte(len(lacing))
	copy(p[oggHeaderSize:], lacing)
	copy(p[oggHeaderSize+len(lacing):], body)
	binary.LittleEndian.PutUint32(p[22:26], oggCRC(p))
	return p
}

// lace returns the lacing values for one packet of length n.
func lace(n int) []byte {
	var l []byte
	for n >= 255 {
		l = append(l, 255)
		n -= 255
	}
	return append(l, byte(n))
}

func TestDemuxOgg_Packets(t *testing.T) {
	t.Parallel()

	a := bytes.Repeat([]byte{'a'}, 10)
	b := bytes.Repeat([]byte{'b'}, 300)
	c := []byte{}

	lacing := append(append(lace(len(a)), lace(len(b))...), lace(len(c))...)
	body := append(append([]byte(nil), a...), b...)
	data := oggPage(7, 0, oggFlagEOS, 1234, lacing, body)

	st, err := demuxOgg(data)
	if err != nil {
		t.Fatalf("demuxOgg: %v", err)
	}
	if st.Serial != 7 || st.LastGranule != 1234 {
		t.Errorf("serial/granule = %d/%d, want 7/1234", st.Serial, st.LastGranule)
	}
	if len(st.Packets) != 3 {
		t.Fatalf("got %d packets, want 3", len(st.Packets))
	}
	if !bytes.Equal(st.Packets[0].Data, a) || !bytes.Equal(st.Packets[1].Data, b) || len(st.Packets[2].Data) != 0 {
		t.Errorf("packet contents mismatch: %d/%d/%d bytes", len(st.Packets[0].Data), len(st.Packets[1].Data), len(st.Packets[2].Data))
	}
}

func TestDemuxOgg_PacketSpanningPages(t *testing.T) {
	t.Parallel()

	big := bytes.Repeat([]byte{'x'}, 600)
	// First page carries 510 bytes with no terminating lacing value.
	p1 := oggPage(1, 0, 0, -1, []byte{255, 255}, big[:510])
	p2 := oggPage(1, 1, oggFlagContinue|oggFlagEOS, 960, []byte{90}, big[510:])

	st, err := demuxOgg(append(p1, p2...))
	if err != nil {
		t.Fatalf("demuxOgg: %v", err)
	}
	if len(st.Packets) != 1 || !bytes.Equal(st.Packets[0].Data, big) {
		t.Fatalf("expected one reassembled 600-byte packet, got %d packets", len(st.Packets))
	}
	if st.Packets[0].Granule != 960 || st.LastGranule != 960 {
		t.Errorf("granule = %d/%d, want 960", st.Packets[0].Granule, st.LastGranule)
	}
}

func TestDemuxOgg_SkipsOtherStreams(t *testing.T) {
	t.Parallel()

	p1 := oggPage(1, 0, 0, 0, lace(3), []byte("one"))
	p2 := oggPage(2, 0, 0, 0, lace(3), []byte("two"))
	p3 := oggPage(1, 1, oggFlagEOS, 5, lace(5), []byte("three"))

	st, err := demuxOgg(bytes.Join([][]byte{p1, p2, p3}, nil))
	if err != nil {
		t.Fatalf("demuxOgg: %v", err)
	}
	if len(st.Packets) != 2 || string(st.Packets[1].Data) != "three" {
		t.Errorf("unexpected packets: %d %+v", len(st.Packets), st.Packets)
	}
}

func TestDemuxOgg_Corrupt(t *testing.T) {
	t.Parallel()

	good := oggPage(1, 0, oggFlagEOS, 0, lace(4), []byte("data"))

	badCRC := append([]byte(nil), good...)
	badCRC[len(badCRC)-1] ^= 0xFF

	tests := map[string][]byte{
		"bad crc":        badCRC,
		"truncated body": good[:len(good)-2],
		"bad capture":    append([]byte("OggX"), good[4:]...),
		"no pages":       nil,
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := demuxOgg(data); !errors.Is(err, errOggCorrupt) {
				t.Errorf("demuxOgg error = %v, want errOggCorrupt", err)
			}
		})
	}
}

func TestDemuxOgg_StopsAtEndOfStream(t *testing.T) {
	t.Parallel()

	good := oggPage(1, 0, oggFlagEOS, 0, lace(4), []byte("data"))
	st, err := demuxOgg(append(good, "trailing junk"...))
	if err != nil {
		t.Fatalf("demuxOgg: %v", err)
	}
	if len(st.Packets) != 1 {
		t.Errorf("got %d packets, want 1", len(st.Packets))
	}
}

func TestSniffOgg(t *testing.T) {
	t.Parallel()

	if !sniffOgg([]byte("OggS\x00")) {
		t.Error("expected OggS prefix to match")
	}
	if sniffOgg([]byte("Ogg")) {
		t.Error("expected short input not to match")
	}
}
