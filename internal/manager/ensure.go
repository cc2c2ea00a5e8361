package manager

import (
	"context"
	"fmt"
	"time"

	"voxd/internal/synth"
)

// ensureLoadedLocked makes sure a model is resident. Caller holds the slot.
func (m *Manager) ensureLoadedLocked(ctx context.Context) (synth.Model, error) {
	m.mu.RLock()
	model, closed := m.model, m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if model != nil {
		return model, nil
	}
	if m.loader == nil {
		return nil, ErrModelLoadFailure(fmt.Errorf("no model loader configured"))
	}

	m.mu.Lock()
	m.state = StateLoading
	m.mu.Unlock()
	m.publish(Event{Name: EventLoadStart})
	m.log.Info().Msg("loading model")

	start := time.Now()
	model, err := m.callLoader(ctx)
	if err == nil && model == nil {
		err = fmt.Errorf("loader returned no model")
	}
	if err != nil {
		m.mu.Lock()
		m.state = StateUnloaded
		m.err = err.Error()
		m.mu.Unlock()
		m.publish(Event{Name: EventLoadError, Fields: map[string]any{"error": err.Error()}})
		return nil, ErrModelLoadFailure(err)
	}
	took := time.Since(start)

	m.mu.Lock()
	m.model = model
	m.state = StateReady
	m.loadedAt = m.now()
	m.err = ""
	m.loads++
	m.mu.Unlock()
	m.publish(Event{Name: EventLoadDone, Fields: map[string]any{
		"duration":    took,
		"sample_rate": model.SampleRate(),
	}})
	return model, nil
}

// callLoader invokes the loader, converting a panic into an error so a
// broken loader cannot leave the slot held.
func (m *Manager) callLoader(ctx context.Context) (model synth.Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			model = nil
			err = fmt.Errorf("loader panic: %v", r)
		}
	}()
	return m.loader(ctx)
}
