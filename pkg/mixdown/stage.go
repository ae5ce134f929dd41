package mixdown

// Stage is a step of a single mix call. Every call starts in [StageIdle] and
// moves forward through decoding, rendering and encoding, ending in exactly
// one of [StageDone] or [StageFailed]. Stages never repeat within a call.
type Stage int

const (
	StageIdle Stage = iota
	StageDecoding
	StageRendering
	StageEncoding
	StageDone
	StageFailed
)

// String returns the lower-case stage name used in logs, metrics and errors.
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageDecoding:
		return "decoding"
	case StageRendering:
		return "rendering"
	case StageEncoding:
		return "encoding"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a mix call.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}
