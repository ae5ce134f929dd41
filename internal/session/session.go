// Package session manages sing-along sessions: a lyric sheet parsed once at
// open, the take produced by each mix, and the resources the session holds
// until it is closed.
//
// A session runs at most one mix at a time. The mixdown engine keeps no
// per-call state and is shared by every session.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/singalong/internal/observe"
	"github.com/MrWong99/singalong/internal/takestore"
	"github.com/MrWong99/singalong/pkg/lyrics"
	"github.com/MrWong99/singalong/pkg/mixdown"
)

var (
	// ErrMixInFlight is returned by [Session.Mix] while another mix on the
	// same session is running.
	ErrMixInFlight = errors.New("session: a mix is already running")

	// ErrClosed is returned when operating on a closed session.
	ErrClosed = errors.New("session: closed")

	// ErrNotFound is returned by [Manager.Get] and [Manager.Close] for an
	// unknown id.
	ErrNotFound = errors.New("session: not found")
)

// Info is a snapshot of session metadata.
type Info struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Segments  int       `json:"segment_count"`
	SungMs    int64     `json:"sung_ms"`
	Truncated bool      `json:"truncated"`
	Mixing    bool      `json:"mixing"`
	Takes     int       `json:"takes"`
}

// Session is one open sing-along. All methods are safe for concurrent use.
type Session struct {
	id      string
	created time.Time
	track   *lyrics.Track
	parse   lyrics.Result
	mgr     *Manager

	mixing atomic.Bool
	takes  atomic.Int64

	mu      sync.Mutex
	closed  bool
	closers []io.Closer

	closeOnce sync.Once
	closeErr  error
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Track returns the parsed lyric track.
func (s *Session) Track() *lyrics.Track { return s.track }

// ParseResult returns the report produced when the lyric sheet was parsed.
func (s *Session) ParseResult() lyrics.Result { return s.parse }

// Info returns a metadata snapshot.
func (s *Session) Info() Info {
	return Info{
		ID:        s.id,
		CreatedAt: s.created,
		Segments:  s.track.Len(),
		SungMs:    s.track.SungMs(),
		Truncated: s.parse.Truncated,
		Mixing:    s.mixing.Load(),
		Takes:     int(s.takes.Load()),
	}
}

// Acquire registers c to be closed when the session closes. Closers run in
// reverse registration order. If the session is already closed, c is closed
// immediately and [ErrClosed] is returned joined with any error from c.
func (s *Session) Acquire(c io.Closer) error {
	s.mu.Lock()
	if !s.closed {
		s.closers = append(s.closers, c)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return errors.Join(ErrClosed, c.Close())
}

// Release removes c from the set closed with the session without closing it.
// It reports whether c was registered. Callers that finish with a resource
// before the session closes release it so long sessions do not accumulate
// dead handles.
func (s *Session) Release(c io.Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, held := range s.closers {
		if held == c {
			s.closers = slices.Delete(s.closers, i, i+1)
			return true
		}
	}
	return false
}

// Mix renders backing and vocal with the manager's current engine and stores
// the result as a take of this session. A second call while one is running
// fails fast with [ErrMixInFlight]. Engine failures are returned as
// *[mixdown.Error] so callers can tell decode problems from internal ones.
func (s *Session) Mix(ctx context.Context, backing, vocal []byte) (*takestore.Take, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	if !s.mixing.CompareAndSwap(false, true) {
		s.mgr.metrics.RecordMix(ctx, "rejected")
		return nil, ErrMixInFlight
	}
	defer s.mixing.Store(false)

	ctx, span := observe.StartSpan(ctx, "session.Mix", trace.WithAttributes(observe.AttrSessionID.String(s.id)))
	defer span.End()
	log := observe.SessionLogger(ctx, s.id)

	out, err := s.mgr.Engine().Mix(ctx, mixdown.Request{Backing: backing, Vocal: vocal})
	if err != nil {
		observe.Fail(span, err)
		s.mgr.metrics.RecordMix(ctx, "failed")
		return nil, err
	}

	take := &takestore.Take{SessionID: s.id, WAV: out}
	if err := s.mgr.store.Put(context.WithoutCancel(ctx), take); err != nil {
		err = fmt.Errorf("session: store take: %w", err)
		observe.Fail(span, err)
		s.mgr.metrics.RecordMix(ctx, "failed")
		return nil, err
	}
	span.SetAttributes(observe.AttrTakeID.String(take.ID))
	s.takes.Add(1)
	s.mgr.metrics.RecordMix(ctx, "ok")
	log.Info("take stored", "take_id", take.ID, "bytes", take.Size, "duration", take.Duration())
	return take, nil
}

// Close releases every acquired resource in reverse order and removes the
// session from its manager. It is idempotent: later calls return the result
// of the first.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		closers := s.closers
		s.closers = nil
		s.mu.Unlock()

		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				slog.Warn("session: closer error", "session_id", s.id, "index", i, "err", err)
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
		s.mgr.forget(s)
		slog.Info("session closed", "session_id", s.id)
	})
	return s.closeErr
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
