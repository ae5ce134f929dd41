package lyrics_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/singalong/pkg/lyrics"
)

const threeEntries = `1
00:00:01,000 --> 00:00:04,500
Hello darkness

2
00:00:05,000 --> 00:00:09,000
my old friend
I've come to talk

3
00:00:31,384 --> 00:00:35,000
with you again
`

func TestParse_WellFormed(t *testing.T) {
	t.Parallel()

	// Gap between 2 and 3 is 22s; use a sheet without large gaps here.
	sheet := strings.Replace(threeEntries, "00:00:31,384", "00:00:12,384", 1)
	segs := lyrics.Parse(sheet)
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3: %+v", len(segs), segs)
	}

	want := []lyrics.Segment{
		{ID: "1", StartMs: 1000, EndMs: 4500, Text: "Hello darkness"},
		{ID: "2", StartMs: 5000, EndMs: 9000, Text: "my old friend\nI've come to talk"},
		{ID: "3", StartMs: 12384, EndMs: 35000, Text: "with you again"},
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, segs[i], want[i])
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int64
	}{
		{"00:00:31,384", 31384},
		{"00:00:00,000", 0},
		{"01:02:03,004", 3723004},
		{"00:75:00,000", 4500000},
		{"100:00:00,001", 360000001},
	}
	for _, tt := range tests {
		got, err := lyrics.ParseTimestamp(tt.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimestamp(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "00:00:31.384", "00:31,384", "aa:00:00,000", "00:00:00,", "00:-1:00,000"} {
		if _, err := lyrics.ParseTimestamp(in); err == nil {
			t.Errorf("ParseTimestamp(%q) expected error", in)
		}
	}
}

func TestParse_GapInsertion(t *testing.T) {
	t.Parallel()

	sheet := "1\n00:00:01,000 --> 00:00:03,000\nfirst\n\n2\n00:00:15,000 --> 00:00:17,000\nsecond\n"
	segs := lyrics.Parse(sheet)
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3: %+v", len(segs), segs)
	}
	brk := segs[1]
	if !brk.Instrumental {
		t.Fatalf("segment 1 should be instrumental: %+v", brk)
	}
	if brk.StartMs != segs[0].EndMs || brk.EndMs != segs[2].StartMs {
		t.Errorf("break spans [%d,%d], want [%d,%d]", brk.StartMs, brk.EndMs, segs[0].EndMs, segs[2].StartMs)
	}
	if brk.ID != "break-0" {
		t.Errorf("break id = %q, want %q", brk.ID, "break-0")
	}
	if brk.Text != lyrics.InstrumentalText {
		t.Errorf("break text = %q, want %q", brk.Text, lyrics.InstrumentalText)
	}
	if segs[0].Instrumental || segs[2].Instrumental {
		t.Error("real lyric lines must not be instrumental")
	}
}

func TestParse_NoGapBelowThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		sheet string
		want  int
	}{
		{"five second gap", "1\n00:00:01,000 --> 00:00:03,000\na\n\n2\n00:00:08,000 --> 00:00:09,000\nb\n", 2},
		{"exactly threshold", "1\n00:00:01,000 --> 00:00:03,000\na\n\n2\n00:00:13,000 --> 00:00:14,000\nb\n", 2},
		{"one ms over threshold", "1\n00:00:01,000 --> 00:00:03,000\na\n\n2\n00:00:13,001 --> 00:00:14,000\nb\n", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := len(lyrics.Parse(tt.sheet)); got != tt.want {
				t.Errorf("got %d segments, want %d", got, tt.want)
			}
		})
	}
}

func TestParse_BreakIndexRefersToPrecedingSegment(t *testing.T) {
	t.Parallel()

	sheet := `a
00:00:00,000 --> 00:00:01,000
x

b
00:00:02,000 --> 00:00:03,000
y

c
00:00:20,000 --> 00:00:21,000
z
`
	segs := lyrics.Parse(sheet)
	if len(segs) != 4 {
		t.Fatalf("got %d segments, want 4", len(segs))
	}
	if segs[2].ID != "break-1" {
		t.Errorf("break id = %q, want break-1", segs[2].ID)
	}
}

func TestParse_BreakIDNeverCollides(t *testing.T) {
	t.Parallel()

	sheet := "break-0\n00:00:00,000 --> 00:00:01,000\nx\n\n2\n00:00:30,000 --> 00:00:31,000\ny\n"
	segs := lyrics.Parse(sheet)
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	if segs[1].ID == "break-0" {
		t.Errorf("synthetic id collides with source id %q", segs[0].ID)
	}
}

func TestParse_TruncatedTail(t *testing.T) {
	t.Parallel()

	sheet := "1\n00:00:01,000 --> 00:00:02,000\none\n\n2\n00:00:03,000 --> 00:00:04,000\ntwo\n\n3\n"
	res := lyrics.ParseReport(sheet)
	if len(res.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(res.Segments))
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if res.Line != 10 {
		t.Errorf("Line = %d, want 10", res.Line)
	}
}

func TestParse_StopsAtMalformedTiming(t *testing.T) {
	t.Parallel()

	// Entry 2 is broken; entry 3 is valid but must not be reached.
	sheet := "1\n00:00:01,000 --> 00:00:02,000\none\n\n2\n00:00:03,000 -> 00:00:04,000\ntwo\n\n3\n00:00:05,000 --> 00:00:06,000\nthree\n"
	res := lyrics.ParseReport(sheet)
	if len(res.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(res.Segments))
	}
	if !res.Truncated || res.Reason == "" {
		t.Errorf("expected truncation with reason, got %+v", res)
	}
}

func TestParse_EndBeforeStartTruncates(t *testing.T) {
	t.Parallel()

	sheet := "1\n00:00:05,000 --> 00:00:01,000\nbackwards\n"
	res := lyrics.ParseReport(sheet)
	if len(res.Segments) != 0 || !res.Truncated {
		t.Errorf("got %+v, want empty truncated result", res)
	}
}

func TestParse_LineEndings(t *testing.T) {
	t.Parallel()

	unix := "1\n00:00:01,000 --> 00:00:02,000\nline a\nline b\n\n2\n00:00:03,000 --> 00:00:04,000\nc\n"
	for name, sheet := range map[string]string{
		"crlf":     strings.ReplaceAll(unix, "\n", "\r\n"),
		"cr":       strings.ReplaceAll(unix, "\n", "\r"),
		"bom":      "\ufeff" + unix,
		"bom crlf": "\ufeff" + strings.ReplaceAll(unix, "\n", "\r\n"),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got := lyrics.Parse(sheet)
			want := lyrics.Parse(unix)
			if len(got) != len(want) {
				t.Fatalf("got %d segments, want %d", len(got), len(want))
			}
			if got[0].ID != "1" {
				t.Errorf("first id = %q, want %q", got[0].ID, "1")
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("segment %d = %+v, want %+v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestParse_EmptyTextAndArbitraryID(t *testing.T) {
	t.Parallel()

	sheet := "intro\n00:00:00,000 --> 00:00:02,000\n\nverse one\n00:00:02,000 --> 00:00:04,000\nla la\n"
	segs := lyrics.Parse(sheet)
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].ID != "intro" || segs[0].Text != "" {
		t.Errorf("segment 0 = %+v, want id intro with empty text", segs[0])
	}
	if segs[1].ID != "verse one" {
		t.Errorf("segment 1 id = %q, want %q", segs[1].ID, "verse one")
	}
}

func TestParse_EmptyInput(t *testing.T) {
	t.Parallel()

	res := lyrics.ParseReport("\n\n  \n")
	if len(res.Segments) != 0 || res.Truncated {
		t.Errorf("got %+v, want empty untruncated result", res)
	}
}

func TestParse_Deterministic(t *testing.T) {
	t.Parallel()

	a := lyrics.Parse(threeEntries)
	b := lyrics.Parse(threeEntries)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("segment %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestParseReader(t *testing.T) {
	t.Parallel()

	res, err := lyrics.ParseReader(strings.NewReader(threeEntries))
	if err != nil {
		t.Fatalf("ParseReader: %v", err)
	}
	// 9000 -> 31384 is a 22.384s gap.
	if len(res.Segments) != 4 {
		t.Fatalf("got %d segments, want 4", len(res.Segments))
	}
	if !res.Segments[2].Instrumental {
		t.Errorf("segment 2 should be an instrumental break: %+v", res.Segments[2])
	}
}
