package manager

import "time"

// State represents the lifecycle state of the resident model.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateEvicting State = "evicting"
)

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State      State
	Loaded     bool
	LoadedAt   time.Time
	LastUsed   time.Time
	SampleRate int
	Err        string
}
