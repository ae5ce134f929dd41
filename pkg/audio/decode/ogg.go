package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Ogg page header layout.
const (
	oggHeaderSize   = 27
	oggFlagContinue = 0x01
	oggFlagEOS      = 0x04
)

var errOggCorrupt = errors.New("ogg: corrupt stream")

// oggPacket is one logical packet reassembled from the page lacing, tagged with
// the granule position of the page on which it completed.
type oggPacket struct {
	Data    []byte
	Granule int64
}

// oggStream is the result of demuxing a single logical bitstream.
type oggStream struct {
	Serial  uint32
	Packets []oggPacket
	// LastGranule is the granule position of the final page, or -1.
	LastGranule int64
}

func sniffOgg(data []byte) bool {
	return len(data) >= 4 && string(data[0:4]) == "OggS"
}

// demuxOgg splits data into the packets of its first logical bitstream. Pages
// belonging to other streams are skipped. Every page CRC is verified.
func demuxOgg(data []byte) (*oggStream, error) {
	st := &oggStream{LastGranule: -1}
	var (
		partial []byte
		haveSer bool
	)

	for off := 0; off < len(data); {
		if len(data)-off < oggHeaderSize || string(data[off:off+4]) != "OggS" {
			return nil, fmt.Errorf("%w: bad capture pattern at offset %d", errOggCorrupt, off)
		}
		h := data[off:]
		if h[4] != 0 {
			return nil, fmt.Errorf("%w: unsupported page version %d", errOggCorrupt, h[4])
		}
		flags := h[5]
		granule := int64(binary.LittleEndian.Uint64(h[6:14]))
		serial := binary.LittleEndian.Uint32(h[14:18])
		nsegs := int(h[26])
		if len(h) < oggHeaderSize+nsegs {
			return nil, fmt.Errorf("%w: truncated lacing table", errOggCorrupt)
		}
		lacing := h[oggHeaderSize : oggHeaderSize+nsegs]
		bodyLen := 0
		for _, l := range lacing {
			bodyLen += int(l)
		}
		pageLen := oggHeaderSize + nsegs + bodyLen
		if len(h) < pageLen {
			return nil, fmt.Errorf("%w: truncated page body", errOggCorrupt)
		}
		page := h[:pageLen]
		if want, got := binary.LittleEndian.Uint32(page[22:26]), oggCRC(page); want != got {
			return nil, fmt.Errorf("%w: page crc %08x, want %08x", errOggCorrupt, got, want)
		}
		off += pageLen

		if !haveSer {
			st.Serial, haveSer = serial, true
		}
		if serial != st.Serial {
			continue
		}
		if flags&oggFlagContinue == 0 && len(partial) > 0 {
			// A fresh page while a packet was still open; drop the fragment.
			partial = nil
		}

		body := page[oggHeaderSize+nsegs:]
		pos := 0
		for _, l := range lacing {
			partial = append(partial, body[pos:pos+int(l)]...)
			pos += int(l)
			if l < 255 {
				st.Packets = append(st.Packets, oggPacket{Data: partial, Granule: granule})
				partial = nil
			}
		}
		if granule != -1 {
			st.LastGranule = granule
		}
		if flags&oggFlagEOS != 0 {
			break
		}
	}

	if !haveSer {
		return nil, fmt.Errorf("%w: no pages", errOggCorrupt)
	}
	return st, nil
}

var oggCRCTable = func() [256]uint32 {
	var t [256]uint32
	for i := range t {
		r := uint32(i) << 24
		for range 8 {
			if r&0x80000000 != 0 {
				r = r<<1 ^ 0x04C11DB7
			} else {
				r <<= 1
			}
		}
		t[i] = r
	}
	return t
}()

// oggCRC computes the page checksum with the crc field treated as zero.
func oggCRC(page []byte) uint32 {
	var crc uint32
	for i, b := range page {
		if i >= 22 && i < 26 {
			b = 0
		}
		crc = crc<<8 ^ oggCRCTable[byte(crc>>24)^b]
	}
	return crc
}
