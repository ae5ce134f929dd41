package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/singalong/internal/observe"
	"github.com/MrWong99/singalong/internal/takestore"
	"github.com/MrWong99/singalong/pkg/lyrics"
	"github.com/MrWong99/singalong/pkg/mixdown"
)

// ManagerConfig holds the dependencies of a [Manager].
type ManagerConfig struct {
	// Engine mixes takes. Required; replace it later with [Manager.SetEngine].
	Engine *mixdown.Engine

	// Store persists takes. Default: [takestore.NewMemStore].
	Store takestore.Store

	// Metrics receives session metrics. Default: [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Manager tracks open sessions. All exported methods are safe for concurrent
// use.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	engine  atomic.Pointer[mixdown.Engine]
	store   takestore.Store
	metrics *observe.Metrics
	now     func() time.Time
}

// NewManager creates a [Manager]. It panics when cfg.Engine is nil.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Engine == nil {
		panic("session: NewManager requires an engine")
	}
	if cfg.Store == nil {
		cfg.Store = takestore.NewMemStore()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	m := &Manager{
		sessions: make(map[string]*Session),
		store:    cfg.Store,
		metrics:  cfg.Metrics,
		now:      time.Now,
	}
	m.engine.Store(cfg.Engine)
	return m
}

// Engine returns the engine used for new mixes.
func (m *Manager) Engine() *mixdown.Engine { return m.engine.Load() }

// SetEngine swaps the engine. Mixes already running finish on the engine they
// started with.
func (m *Manager) SetEngine(e *mixdown.Engine) {
	if e == nil {
		return
	}
	m.engine.Store(e)
}

// Store returns the take store sessions write to.
func (m *Manager) Store() takestore.Store { return m.store }

// Open parses subtitle and starts a session around the resulting track. A
// lyric sheet that stops early still opens; the report is available from
// [Session.ParseResult].
func (m *Manager) Open(ctx context.Context, subtitle string) (*Session, error) {
	res := lyrics.ParseReport(subtitle)
	m.metrics.RecordLyricsParse(ctx, res.Truncated)

	s := &Session{
		id:      uuid.NewString(),
		created: m.now().UTC(),
		track:   lyrics.NewTrack(res.Segments),
		parse:   res,
		mgr:     m,
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	m.metrics.ActiveSessions.Add(ctx, 1)

	observe.Logger(ctx).Info("session opened",
		"session_id", s.id,
		"segments", s.track.Len(),
		"truncated", res.Truncated,
	)
	return s, nil
}

// Get returns the open session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close closes the session with id.
func (m *Manager) Close(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return s.Close()
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns metadata for every open session, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Info())
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b Info) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Shutdown closes every open session. It stops early when ctx is done,
// returning ctx.Err() joined with the close errors seen so far.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.RUnlock()

	slog.Info("closing sessions", "count", len(open))
	var errs []error
	for i, s := range open {
		select {
		case <-ctx.Done():
			slog.Warn("shutdown deadline exceeded", "remaining", len(open)-i)
			return errors.Join(append(errs, ctx.Err())...)
		default:
		}
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// forget removes s from the session table. Called once by [Session.Close].
func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	_, ok := m.sessions[s.id]
	delete(m.sessions, s.id)
	m.mu.Unlock()
	if ok {
		m.metrics.ActiveSessions.Add(context.Background(), -1)
	}
}
