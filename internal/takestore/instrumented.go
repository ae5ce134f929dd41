package takestore

import (
	"context"
	"errors"

	"github.com/MrWong99/singalong/internal/observe"
)

// Instrumented wraps a [Store] and records every operation to
// [observe.Metrics.TakeOps], plus the stored size of each successful Put.
type Instrumented struct {
	Store
	metrics *observe.Metrics
}

var _ Store = (*Instrumented)(nil)

// Instrument returns s wrapped with metrics. A nil m uses
// [observe.DefaultMetrics].
func Instrument(s Store, m *observe.Metrics) *Instrumented {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Instrumented{Store: s, metrics: m}
}

// Put implements [Store].
func (s *Instrumented) Put(ctx context.Context, t *Take) error {
	err := s.Store.Put(ctx, t)
	s.metrics.RecordTakeOp(ctx, "put", err)
	if err == nil {
		s.metrics.TakeBytes.Record(ctx, int64(t.Size))
	}
	return err
}

// Get implements [Store]. A miss counts as ok.
func (s *Instrumented) Get(ctx context.Context, id string) (*Take, error) {
	t, err := s.Store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		s.metrics.RecordTakeOp(ctx, "get", nil)
	} else {
		s.metrics.RecordTakeOp(ctx, "get", err)
	}
	return t, err
}

// List implements [Store].
func (s *Instrumented) List(ctx context.Context, sessionID string) ([]Take, error) {
	takes, err := s.Store.List(ctx, sessionID)
	s.metrics.RecordTakeOp(ctx, "list", err)
	return takes, err
}

// Delete implements [Store].
func (s *Instrumented) Delete(ctx context.Context, id string) error {
	err := s.Store.Delete(ctx, id)
	s.metrics.RecordTakeOp(ctx, "delete", err)
	return err
}
