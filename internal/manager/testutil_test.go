package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"voxd/internal/synth"
	"voxd/internal/synth/synthtest"
)

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

// fakeClock is a manually stepped clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// newTestManager wires a manager to a counting loader producing fresh fake
// models. The returned slice pointer collects every model created.
func newTestManager(t *testing.T, cfg ManagerConfig) (*Manager, *synthtest.Loader, *[]*synthtest.Model) {
	t.Helper()
	var mu sync.Mutex
	var made []*synthtest.Model
	l := &synthtest.Loader{Make: func() synth.Model {
		m := synthtest.New(2, 4)
		mu.Lock()
		made = append(made, m)
		mu.Unlock()
		return m
	}}
	cfg.Loader = l.Load
	cfg.Logger = zerolog.Nop()
	return NewWithConfig(cfg), l, &made
}
