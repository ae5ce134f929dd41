package takestore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory [Store]. Stored bytes are copied on the way in and
// out so callers cannot alias them.
type MemStore struct {
	mu    sync.RWMutex
	takes map[string]*Take
	now   func() time.Time
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{takes: make(map[string]*Take), now: time.Now}
}

// Put implements [Store].
func (s *MemStore) Put(_ context.Context, t *Take) error {
	if err := prepare(t, s.now()); err != nil {
		return err
	}
	c := *t
	c.WAV = slices.Clone(t.WAV)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.takes[c.ID] = &c
	return nil
}

// Get implements [Store].
func (s *MemStore) Get(_ context.Context, id string) (*Take, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.takes[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *t
	c.WAV = slices.Clone(t.WAV)
	return &c, nil
}

// List implements [Store].
func (s *MemStore) List(_ context.Context, sessionID string) ([]Take, error) {
	s.mu.RLock()
	out := make([]Take, 0, len(s.takes))
	for _, t := range s.takes {
		if sessionID != "" && t.SessionID != sessionID {
			continue
		}
		c := *t
		c.WAV = nil
		out = append(out, c)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Take) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Delete implements [Store].
func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.takes, id)
	return nil
}
