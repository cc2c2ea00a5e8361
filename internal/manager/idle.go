package manager

import (
	"context"
	"time"
)

var timeZero time.Time

// EvictIfIdle evicts the model when it has been idle for at least the idle
// timeout. It never waits for a busy slot: an in-flight generation means the
// model is not idle. Returns whether a model was evicted.
func (m *Manager) EvictIfIdle(ctx context.Context) bool {
	if m.idleTimeout <= 0 {
		return false
	}
	if !m.slot.TryAcquire(1) {
		return false
	}
	defer m.slot.Release(1)

	m.mu.RLock()
	loaded := m.model != nil
	idle := m.now().Sub(m.lastUsed)
	m.mu.RUnlock()
	if !loaded || idle < m.idleTimeout {
		return false
	}
	m.log.Info().Dur("idle", idle).Msg("evicting idle model")
	return m.evictLocked(ReasonIdle)
}

// Run drives the idle watchdog until ctx is done. It returns immediately when
// idle eviction is disabled. Each tick only tries the use-slot: while a lease
// is held the tick is skipped rather than queued, and the model is checked
// again on the next tick after release.
func (m *Manager) Run(ctx context.Context) {
	if m.idleTimeout <= 0 {
		return
	}
	t := time.NewTicker(m.watchInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.EvictIfIdle(ctx)
		}
	}
}
