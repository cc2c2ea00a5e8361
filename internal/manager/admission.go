package manager

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"voxd/internal/synth"
)

func newSlot() *semaphore.Weighted { return semaphore.NewWeighted(1) }

// Lease grants exclusive use of the resident model until Release or Evict.
type Lease struct {
	m     *Manager
	model synth.Model
	once  sync.Once
}

// Model returns the resident model. Valid until the lease ends.
func (l *Lease) Model() synth.Model { return l.model }

// Release returns the use-slot. Safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.m.touch()
		l.m.slot.Release(1)
	})
}

// Evict drops the model (for example after a generation fault) and then
// returns the use-slot. Safe to call after Release; later calls are no-ops.
func (l *Lease) Evict(reason string) {
	l.once.Do(func() {
		l.m.evictLocked(reason)
		l.m.slot.Release(1)
	})
}

// Acquire waits for the use-slot, loads the model if needed and returns a
// lease. The caller must Release or Evict it. Concurrent callers queue in
// arrival order and the loader runs at most once for all of them.
func (m *Manager) Acquire(ctx context.Context) (*Lease, error) {
	if err := m.slot.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	m.touch()
	model, err := m.ensureLoadedLocked(ctx)
	if err != nil {
		m.slot.Release(1)
		return nil, err
	}
	return &Lease{m: m, model: model}, nil
}

// use runs fn with the resident model while holding the use-slot. An error
// from fn other than context cancellation evicts the model and is returned
// wrapped as a generation failure.
func (m *Manager) use(ctx context.Context, fn func(synth.Model) error) error {
	lease, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := fn(lease.Model()); err != nil {
		if ctx.Err() != nil {
			lease.Release()
			return err
		}
		lease.Evict(ReasonGeneration)
		return ErrGenerationFailure(err)
	}
	lease.Release()
	return nil
}
