package manager

import (
	"context"

	"voxd/internal/synth"
	"voxd/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{
		State:    m.state,
		Loaded:   m.model != nil,
		LoadedAt: m.loadedAt,
		LastUsed: m.lastUsed,
		Err:      m.err,
	}
	if m.model != nil {
		s.SampleRate = m.model.SampleRate()
	}
	return s
}

// Memory returns accelerator figures from the resident model, if it reports
// them. It does not load the model.
func (m *Manager) Memory(ctx context.Context) (*types.Memory, bool) {
	m.mu.RLock()
	model := m.model
	m.mu.RUnlock()
	rep, ok := model.(synth.MemoryReporter)
	if model == nil || !ok {
		return nil, false
	}
	mem, err := rep.Memory(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("memory report failed")
		return nil, false
	}
	return &types.Memory{Device: mem.Device, AllocatedBytes: mem.AllocatedBytes, ReservedBytes: mem.ReservedBytes}, true
}

// Status builds a detailed status response for /status.
func (m *Manager) Status(ctx context.Context) types.StatusResponse {
	snap := m.Snapshot()
	m.mu.RLock()
	loads, evictions := m.loads, m.evictions
	m.mu.RUnlock()
	now := m.now()
	resp := types.StatusResponse{
		State:              string(snap.State),
		Loaded:             snap.Loaded,
		LastUsed:           snap.LastUsed.Unix(),
		IdleTimeoutSeconds: int64(m.idleTimeout.Seconds()),
		SampleRate:         snap.SampleRate,
		LoadsTotal:         loads,
		EvictionsTotal:     evictions,
		LastError:          snap.Err,
		UptimeSeconds:      int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix:     now.Unix(),
	}
	if !snap.LoadedAt.IsZero() {
		resp.LoadedAt = snap.LoadedAt.Unix()
	}
	if mem, ok := m.Memory(ctx); ok {
		resp.Memory = mem
	}
	return resp
}
