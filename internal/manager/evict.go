package manager

import (
	"context"
	"runtime"
	"runtime/debug"
)

// evictLocked releases the resident model. Caller holds the slot. Returns
// whether a model was actually dropped.
func (m *Manager) evictLocked(reason string) bool {
	m.mu.Lock()
	model := m.model
	if model == nil {
		m.mu.Unlock()
		return false
	}
	m.state = StateEvicting
	m.mu.Unlock()

	if err := model.Close(); err != nil {
		m.log.Warn().Err(err).Str("reason", reason).Msg("model close failed")
	}

	m.mu.Lock()
	m.model = nil
	m.state = StateUnloaded
	m.loadedAt = timeZero
	m.evictions++
	m.mu.Unlock()

	// Encourage the runtime to hand freed buffers back to the OS.
	runtime.GC()
	debug.FreeOSMemory()

	m.publish(Event{Name: EventEvict, Fields: map[string]any{"reason": reason}})
	return true
}

// ForceEvict drops the resident model, waiting for any in-flight generation
// to finish first. It is idempotent and reports whether a model was dropped.
func (m *Manager) ForceEvict(ctx context.Context) (bool, error) {
	if err := m.slot.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer m.slot.Release(1)
	return m.evictLocked(ReasonExplicit), nil
}

// Close evicts the model and makes further Acquire calls fail.
func (m *Manager) Close(ctx context.Context) error {
	if err := m.slot.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.slot.Release(1)
	m.evictLocked(ReasonShutdown)
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
