// Package lyrics parses subtitle-formatted lyric sheets into time-stamped
// segments and answers "which line is active now?" for a playback position.
//
// Parsing is pure and deterministic. A damaged sheet never produces an error:
// parsing stops at the first entry without a usable timing line and returns the
// entries read so far. Use [ParseReport] to learn whether that happened.
//
// Long lyric-free gaps are filled with synthetic instrumental segments so that
// a display always has something to show.
package lyrics

import "sort"

// GapThresholdMs is the minimum silence between two lyric lines, in
// milliseconds, that is exceeded before an instrumental break is inserted.
const GapThresholdMs = 10000

// InstrumentalText is the display text of synthetic instrumental segments.
const InstrumentalText = "♪ ♪ ♪"

// Segment is one timed lyric line. Segments are created once by the parser and
// never modified afterwards.
type Segment struct {
	// ID is the identifier line of the source entry, or "break-<n>" for a
	// synthetic instrumental segment.
	ID string `json:"id"`

	// StartMs is the inclusive start of the segment in milliseconds.
	StartMs int64 `json:"start_ms"`

	// EndMs is the end of the segment in milliseconds. StartMs <= EndMs.
	EndMs int64 `json:"end_ms"`

	// Text is the display text. Multi-line entries are joined with "\n".
	Text string `json:"text"`

	// Instrumental marks segments synthesised for gaps between lyric lines.
	Instrumental bool `json:"instrumental"`
}

// DurationMs returns EndMs - StartMs.
func (s Segment) DurationMs() int64 {
	return s.EndMs - s.StartMs
}

// Contains reports whether posMs falls inside [StartMs, EndMs).
func (s Segment) Contains(posMs int64) bool {
	return posMs >= s.StartMs && posMs < s.EndMs
}

// Track is an ordered, read-only lyric sequence with position lookup.
// It is safe for concurrent use because it is never mutated.
type Track struct {
	segments []Segment
}

// NewTrack wraps segs. The slice is copied so later changes by the caller do
// not leak into the track.
func NewTrack(segs []Segment) *Track {
	c := make([]Segment, len(segs))
	copy(c, segs)
	return &Track{segments: c}
}

// Len returns the number of segments.
func (t *Track) Len() int {
	return len(t.segments)
}

// Segments returns a copy of the ordered segments.
func (t *Track) Segments() []Segment {
	c := make([]Segment, len(t.segments))
	copy(c, t.segments)
	return c
}

// SungMs returns the total duration of the non-instrumental segments.
func (t *Track) SungMs() int64 {
	var total int64
	for _, seg := range t.segments {
		if !seg.Instrumental {
			total += seg.DurationMs()
		}
	}
	return total
}

// At returns the segment active at posMs together with its index. ok is false
// when no segment covers the position (before the first line, after the last
// one, or inside a short gap).
func (t *Track) At(posMs int64) (seg Segment, idx int, ok bool) {
	// First segment starting after posMs; the candidate is the one before it.
	i := sort.Search(len(t.segments), func(i int) bool {
		return t.segments[i].StartMs > posMs
	})
	if i == 0 {
		return Segment{}, -1, false
	}
	cand := t.segments[i-1]
	if !cand.Contains(posMs) {
		return Segment{}, -1, false
	}
	return cand, i - 1, true
}

// Next returns the first segment starting strictly after posMs.
func (t *Track) Next(posMs int64) (Segment, bool) {
	i := sort.Search(len(t.segments), func(i int) bool {
		return t.segments[i].StartMs > posMs
	})
	if i >= len(t.segments) {
		return Segment{}, false
	}
	return t.segments[i], true
}
