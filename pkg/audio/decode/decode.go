// Package decode turns encoded audio blobs into planar float buffers.
//
// Formats are registered by name together with a sniffing predicate that looks
// at the leading bytes of the blob. [Registry.Decode] tries each registered
// format in registration order and uses the first one whose predicate matches.
// The package-level [Default] registry carries the built-in formats: "wav"
// and "mp3" always, and "opus" (Ogg/Opus) when built with the opus tag, since
// that decoder links against the native libopus.
//
// All decoding happens in-process; no external tools are invoked.
package decode

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/singalong/pkg/audio"
)

var (
	// ErrUnknownFormat is returned when no registered format recognises the data.
	ErrUnknownFormat = errors.New("decode: unknown audio format")

	// ErrEmpty is returned for a zero-length input.
	ErrEmpty = errors.New("decode: empty input")

	// ErrNoAudio is returned when a container decodes cleanly but holds no
	// samples.
	ErrNoAudio = errors.New("decode: no audio data")
)

// Func decodes a complete encoded blob.
type Func func(data []byte) (*audio.Buffer, error)

// Format is a named decoder with its sniffing predicate.
type Format struct {
	// Name identifies the format in logs, metrics and errors, e.g. "wav".
	Name string

	// Sniff reports whether data looks like this format. It must not retain
	// data and should inspect only a short prefix.
	Sniff func(data []byte) bool

	// Decode decodes the blob.
	Decode Func
}

// Registry holds the known formats. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	formats []Format
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the shared registry with all built-in formats registered.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry()
		for _, f := range builtins() {
			defaultReg.Register(f)
		}
	})
	return defaultReg
}

// Register adds f to the registry. Registering a name that already exists
// replaces the previous format in place, keeping its sniffing priority.
func (r *Registry) Register(f Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.formats {
		if r.formats[i].Name == f.Name {
			r.formats[i] = f
			return
		}
	}
	r.formats = append(r.formats, f)
}

// Names returns the registered format names in sniffing order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.formats))
	for i, f := range r.formats {
		names[i] = f.Name
	}
	return names
}

// Detect returns the name of the first format whose predicate matches data.
func (r *Registry) Detect(data []byte) (string, error) {
	f, err := r.lookup(data)
	if err != nil {
		return "", err
	}
	return f.Name, nil
}

// Decode sniffs data and decodes it with the matching format. It returns the
// decoded buffer and the name of the format that produced it. The returned
// buffer always passes [audio.Buffer.Validate] and holds at least one sample.
func (r *Registry) Decode(data []byte) (*audio.Buffer, string, error) {
	f, err := r.lookup(data)
	if err != nil {
		return nil, "", err
	}
	buf, err := f.Decode(data)
	if err != nil {
		return nil, f.Name, fmt.Errorf("decode: %s: %w", f.Name, err)
	}
	if err := buf.Validate(); err != nil {
		return nil, f.Name, fmt.Errorf("decode: %s: %w", f.Name, err)
	}
	if buf.Len() == 0 {
		return nil, f.Name, fmt.Errorf("decode: %s: %w", f.Name, ErrNoAudio)
	}
	return buf, f.Name, nil
}

func (r *Registry) lookup(data []byte) (Format, error) {
	if len(data) == 0 {
		return Format{}, ErrEmpty
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.formats {
		if f.Sniff != nil && f.Sniff(data) {
			return f, nil
		}
	}
	return Format{}, ErrUnknownFormat
}

// extraBuiltins is appended to by build-tagged files.
var extraBuiltins []Format

func builtins() []Format {
	return append([]Format{WAV(), MP3()}, extraBuiltins...)
}
