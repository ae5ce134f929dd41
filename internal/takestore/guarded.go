package takestore

import (
	"context"
	"errors"

	"github.com/MrWong99/singalong/internal/resilience"
	"github.com/MrWong99/singalong/pkg/audio/wav"
)

// Guarded wraps a [Store] with a circuit breaker. While the breaker is open
// every call fails with [resilience.ErrOpen] without reaching the backend.
type Guarded struct {
	store   Store
	breaker *resilience.Breaker
}

var _ Store = (*Guarded)(nil)

// Guard returns s behind a breaker built from cfg. Unless cfg.IsFailure is
// set, misses and rejected WAV payloads do not count as backend failures.
func Guard(s Store, cfg resilience.Config) *Guarded {
	if cfg.Name == "" {
		cfg.Name = "takestore"
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = isBackendFailure
	}
	return &Guarded{store: s, breaker: resilience.New(cfg)}
}

func isBackendFailure(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrNotFound),
		errors.Is(err, wav.ErrInvalidHeader),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// Breaker returns the breaker guarding the store.
func (g *Guarded) Breaker() *resilience.Breaker { return g.breaker }

// Check fails while the breaker is open. It backs the readiness check.
func (g *Guarded) Check(context.Context) error {
	if g.breaker.State() == resilience.StateOpen {
		return resilience.ErrOpen
	}
	return nil
}

func (g *Guarded) Put(ctx context.Context, t *Take) error {
	return g.breaker.Do(ctx, func(ctx context.Context) error {
		return g.store.Put(ctx, t)
	})
}

func (g *Guarded) Get(ctx context.Context, id string) (*Take, error) {
	var t *Take
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		t, err = g.store.Get(ctx, id)
		return err
	})
	return t, err
}

func (g *Guarded) List(ctx context.Context, sessionID string) ([]Take, error) {
	var takes []Take
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		takes, err = g.store.List(ctx, sessionID)
		return err
	})
	return takes, err
}

func (g *Guarded) Delete(ctx context.Context, id string) error {
	return g.breaker.Do(ctx, func(ctx context.Context) error {
		return g.store.Delete(ctx, id)
	})
}
