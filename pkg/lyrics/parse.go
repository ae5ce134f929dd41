package lyrics

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// timingSeparator splits the start and end timestamps of a timing line.
const timingSeparator = "-->"

// Result is the outcome of [ParseReport].
type Result struct {
	// Segments is the ordered output, including instrumental breaks.
	Segments []Segment `json:"segments"`

	// Truncated is true when parsing stopped early on a malformed entry.
	Truncated bool `json:"truncated"`

	// Line is the 1-based line number of the offending timing line. Zero when
	// Truncated is false.
	Line int `json:"line,omitempty"`

	// Reason describes why parsing stopped. Empty when Truncated is false.
	Reason string `json:"reason,omitempty"`
}

// Parse converts a subtitle-formatted lyric sheet into ordered segments.
// It never fails: a malformed tail simply ends the sequence early.
func Parse(raw string) []Segment {
	return ParseReport(raw).Segments
}

// ParseReader reads all of r and parses it with [ParseReport].
func ParseReader(r io.Reader) (Result, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("lyrics: read input: %w", err)
	}
	return ParseReport(string(b)), nil
}

// ParseReport parses raw like [Parse] and additionally reports whether, where
// and why parsing stopped before the end of the input.
func ParseReport(raw string) Result {
	lines := splitLines(raw)

	var (
		entries []Segment
		res     Result
	)

	i := 0
	for {
		// Blank lines separate entries.
		for i < len(lines) && isBlank(lines[i]) {
			i++
		}
		if i >= len(lines) {
			break
		}

		id := strings.TrimSpace(lines[i])
		i++

		if i >= len(lines) {
			res.Truncated = true
			res.Line = i + 1
			res.Reason = fmt.Sprintf("entry %q has no timing line", id)
			break
		}
		start, end, err := parseTiming(lines[i])
		if err != nil {
			res.Truncated = true
			res.Line = i + 1
			res.Reason = fmt.Sprintf("entry %q: %v", id, err)
			break
		}
		i++

		var text []string
		for i < len(lines) && !isBlank(lines[i]) {
			text = append(text, lines[i])
			i++
		}

		entries = append(entries, Segment{
			ID:      id,
			StartMs: start,
			EndMs:   end,
			Text:    strings.Join(text, "\n"),
		})
	}

	res.Segments = fillGaps(entries)
	return res
}

// fillGaps interleaves an instrumental segment after every entry whose
// distance to the next entry exceeds [GapThresholdMs].
func fillGaps(entries []Segment) []Segment {
	if len(entries) == 0 {
		return nil
	}

	ids := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		ids[e.ID] = struct{}{}
	}

	out := make([]Segment, 0, len(entries))
	for idx, cur := range entries {
		out = append(out, cur)
		if idx+1 >= len(entries) {
			continue
		}
		next := entries[idx+1]
		if next.StartMs-cur.EndMs <= GapThresholdMs {
			continue
		}
		out = append(out, Segment{
			ID:           breakID(idx, ids),
			StartMs:      cur.EndMs,
			EndMs:        next.StartMs,
			Text:         InstrumentalText,
			Instrumental: true,
		})
	}
	return out
}

// breakID returns "break-<idx>", disambiguated with a numeric suffix in the
// unlikely case that a source entry already uses that identifier.
func breakID(idx int, taken map[string]struct{}) string {
	id := "break-" + strconv.Itoa(idx)
	if _, clash := taken[id]; !clash {
		taken[id] = struct{}{}
		return id
	}
	for n := 1; ; n++ {
		alt := id + "-" + strconv.Itoa(n)
		if _, clash := taken[alt]; !clash {
			taken[alt] = struct{}{}
			return alt
		}
	}
}

// parseTiming parses "<start> --> <end>".
func parseTiming(line string) (start, end int64, err error) {
	left, right, ok := strings.Cut(line, timingSeparator)
	if !ok {
		return 0, 0, fmt.Errorf("timing line %q has no %q separator", line, timingSeparator)
	}
	if start, err = ParseTimestamp(strings.TrimSpace(left)); err != nil {
		return 0, 0, err
	}
	if end, err = ParseTimestamp(strings.TrimSpace(right)); err != nil {
		return 0, 0, err
	}
	if end < start {
		return 0, 0, fmt.Errorf("timing line %q ends before it starts", line)
	}
	return start, end, nil
}

// ParseTimestamp converts "HH:MM:SS,mmm" to milliseconds. Field magnitudes are
// not bounded, so "00:75:00,000" is 75 minutes.
func ParseTimestamp(ts string) (int64, error) {
	clock, millis, ok := strings.Cut(ts, ",")
	if !ok {
		return 0, fmt.Errorf("timestamp %q: missing \",\" before milliseconds", ts)
	}
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("timestamp %q: want HH:MM:SS,mmm", ts)
	}

	var hms [3]int64
	for k, p := range parts {
		v, err := parseField(p)
		if err != nil {
			return 0, fmt.Errorf("timestamp %q: %w", ts, err)
		}
		hms[k] = v
	}
	ms, err := parseField(millis)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: %w", ts, err)
	}

	return (hms[0]*3600+hms[1]*60+hms[2])*1000 + ms, nil
}

func parseField(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty field")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("field %q is not a number", s)
		}
	}
	return strconv.ParseInt(s, 10, 64)
}

// splitLines drops a leading UTF-8 byte order mark, normalises CRLF and lone
// CR to LF and splits on LF.
func splitLines(raw string) []string {
	raw = strings.TrimPrefix(raw, "\ufeff")
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	return strings.Split(raw, "\n")
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
