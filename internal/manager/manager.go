package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"voxd/internal/synth"
)

// Manager owns the singleton model handle. The zero value is not usable;
// construct with NewWithConfig.
type Manager struct {
	// slot serializes loading, generation and eviction.
	slot *semaphore.Weighted

	// mu guards the fields below. Writers also hold slot.
	mu        sync.RWMutex
	model     synth.Model
	state     State
	loadedAt  time.Time
	lastUsed  time.Time
	err       string
	loads     uint64
	evictions uint64
	closed    bool

	loader        synth.Loader
	idleTimeout   time.Duration
	watchInterval time.Duration
	publisher     EventPublisher
	now           func() time.Time
	startTime     time.Time
	encoderBin    string
	sidecarCmd    string
	log           zerolog.Logger
}

// New constructs a Manager with the given loader and idle timeout.
func New(loader synth.Loader, idleTimeout time.Duration) *Manager {
	// Delegate to NewWithConfig to centralize defaults
	return NewWithConfig(ManagerConfig{Loader: loader, IdleTimeout: idleTimeout})
}

// IsLoaded reports whether a model is resident. It never waits for the
// use-slot, so it is safe to call from health probes during generation.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model != nil
}

// Ready reports whether the manager accepts requests. Loading is lazy, so
// an unloaded model does not make the server unready.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}

// IdleTimeout returns the configured idle eviction threshold (0 = disabled).
func (m *Manager) IdleTimeout() time.Duration { return m.idleTimeout }

// SetEventPublisher installs a publisher for lifecycle events.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		m.publisher = noopPublisher{}
		return
	}
	m.publisher = p
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	p.Publish(e)
}

// touch refreshes lastUsed.
func (m *Manager) touch() {
	m.mu.Lock()
	m.lastUsed = m.now()
	m.mu.Unlock()
}
