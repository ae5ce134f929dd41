package mixdown

import (
	"errors"
	"fmt"
)

// Sentinel errors identifying the failing step. Match them with [errors.Is].
var (
	ErrDecode = errors.New("mixdown: decode failed")
	ErrRender = errors.New("mixdown: render failed")
	ErrEncode = errors.New("mixdown: encode failed")
)

// Track names one of the two mix inputs.
type Track string

const (
	TrackBacking Track = "backing"
	TrackVocal   Track = "vocal"
)

// Error is the single failure a mix call surfaces. Track is set only for
// decode failures.
type Error struct {
	Stage Stage
	Track Track
	Err   error
}

func (e *Error) Error() string {
	if e.Track != "" {
		return fmt.Sprintf("mixdown: %s %s track: %v", e.Stage, e.Track, e.Err)
	}
	return fmt.Sprintf("mixdown: %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the stage the error occurred in.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrDecode:
		return e.Stage == StageDecoding
	case ErrRender:
		return e.Stage == StageRendering
	case ErrEncode:
		return e.Stage == StageEncoding
	}
	return false
}
