// Package takestore persists mixed takes: the WAV output of a mixdown together
// with the session it belongs to and metadata read from its header.
//
// Three backends are provided. [MemStore] keeps everything in process memory
// and suits tests and single-node development. [PostgresStore] stores takes in
// a BYTEA column through pgx. [SQLiteStore] is the local catalogue used by the
// offline mixdown command.
package takestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/singalong/pkg/audio/wav"
)

// ErrNotFound is returned by [Store.Get] when no take has the requested id.
var ErrNotFound = errors.New("takestore: take not found")

// Take is one stored mix result.
type Take struct {
	// ID uniquely identifies the take. [Store.Put] assigns a UUID when empty.
	ID string `json:"id"`

	// SessionID is the session that produced the take. Empty for takes made
	// outside a session, e.g. by the offline command.
	SessionID string `json:"session_id,omitempty"`

	// SampleRate, Channels and Frames are read from the WAV header on Put.
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
	Frames     int `json:"frames"`

	// Size is len(WAV).
	Size int `json:"size"`

	// CreatedAt is set by Put.
	CreatedAt time.Time `json:"created_at"`

	// WAV is the complete file. [Store.List] leaves it nil.
	WAV []byte `json:"-"`
}

// Duration returns the playback length described by the header metadata.
func (t *Take) Duration() time.Duration {
	if t.SampleRate <= 0 {
		return 0
	}
	return time.Duration(t.Frames) * time.Second / time.Duration(t.SampleRate)
}

// Store persists takes. Implementations must be safe for concurrent use.
type Store interface {
	// Put validates the WAV header, fills in the metadata fields and the id
	// (when empty), and stores the take.
	Put(ctx context.Context, t *Take) error

	// Get returns the take including its WAV bytes, or [ErrNotFound].
	Get(ctx context.Context, id string) (*Take, error)

	// List returns the metadata of every take belonging to sessionID, oldest
	// first. An empty sessionID lists all takes.
	List(ctx context.Context, sessionID string) ([]Take, error)

	// Delete removes a take. Deleting a missing take is not an error.
	Delete(ctx context.Context, id string) error
}

// prepare validates t.WAV and derives the metadata fields. now is injected so
// every backend stamps takes the same way.
func prepare(t *Take, now time.Time) error {
	if t == nil {
		return errors.New("takestore: nil take")
	}
	h, err := wav.ReadHeader(t.WAV)
	if err != nil {
		return fmt.Errorf("takestore: put: %w", err)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.SampleRate = int(h.SampleRate)
	t.Channels = int(h.Channels)
	t.Frames = h.Samples()
	t.Size = len(t.WAV)
	t.CreatedAt = now.UTC()
	return nil
}
