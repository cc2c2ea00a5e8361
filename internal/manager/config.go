package manager

import (
	"time"

	"github.com/rs/zerolog"

	"voxd/internal/synth"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultWatchInterval = 5 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Loader creates the model on first demand. Required.
	Loader synth.Loader
	// IdleTimeout evicts the model after this long without an acquisition.
	// Zero disables idle eviction and keeps the model resident.
	IdleTimeout time.Duration
	// WatchInterval is the idle watchdog's wake cadence.
	WatchInterval time.Duration
	// Publisher receives lifecycle events. Defaults to a no-op.
	Publisher EventPublisher
	// Now overrides the clock, for tests.
	Now func() time.Time
	// EncoderBin and SidecarCommand are reported by SanityCheck.
	EncoderBin     string
	SidecarCommand string
	Logger         zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		slot:        newSlot(),
		state:       StateUnloaded,
		loader:      cfg.Loader,
		idleTimeout: cfg.IdleTimeout,
		publisher:   cfg.Publisher,
		now:         cfg.Now,
		encoderBin:  cfg.EncoderBin,
		sidecarCmd:  cfg.SidecarCommand,
		log:         cfg.Logger,
	}
	if m.idleTimeout < 0 {
		m.idleTimeout = 0
	}
	if cfg.WatchInterval <= 0 {
		m.watchInterval = defaultWatchInterval
	} else {
		m.watchInterval = cfg.WatchInterval
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.startTime = m.now()
	m.lastUsed = m.startTime
	return m
}
