// Package synthtest provides a deterministic in-memory synth.Model for tests.
package synthtest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"voxd/internal/synth"
)

// ErrInjected is returned by a Model configured to fail.
var ErrInjected = errors.New("synthtest: injected failure")

// Model emits Chunks chunks of ChunkSize samples of constant Value, sleeping
// Delay before each chunk.
type Model struct {
	Rate      int
	Chunks    int
	ChunkSize int
	Value     float32
	Delay     time.Duration
	// FailAfter > 0 makes generation fail after that many chunks.
	FailAfter int
	// Mem is returned by Memory.
	Mem synth.Memory

	mu     sync.Mutex
	calls  []synth.Params
	closed atomic.Int32
	active atomic.Int32
	peak   atomic.Int32
}

var _ synth.Model = (*Model)(nil)
var _ synth.MemoryReporter = (*Model)(nil)

// New returns a Model producing chunks chunks of size samples each.
func New(chunks, size int) *Model {
	return &Model{Rate: 16000, Chunks: chunks, ChunkSize: size, Value: 0.25}
}

func (m *Model) SampleRate() int {
	if m.Rate <= 0 {
		return 16000
	}
	return m.Rate
}

func (m *Model) Generate(ctx context.Context, p synth.Params) ([]float32, error) {
	var out []float32
	err := m.GenerateStream(ctx, p, func(c []float32) error {
		out = append(out, c...)
		return nil
	})
	return out, err
}

func (m *Model) GenerateStream(ctx context.Context, p synth.Params, onChunk func([]float32) error) error {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		peak := m.peak.Load()
		if n <= peak || m.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	m.mu.Lock()
	m.calls = append(m.calls, p)
	m.mu.Unlock()

	for i := 0; i < m.Chunks; i++ {
		if m.FailAfter > 0 && i >= m.FailAfter {
			return ErrInjected
		}
		if m.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.Delay):
			}
		}
		chunk := make([]float32, m.ChunkSize)
		for j := range chunk {
			chunk[j] = m.Value
		}
		if err := onChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) Memory(context.Context) (synth.Memory, error) { return m.Mem, nil }

func (m *Model) Close() error {
	m.closed.Add(1)
	return nil
}

// Closed reports how many times Close was called.
func (m *Model) Closed() int { return int(m.closed.Load()) }

// PeakConcurrency is the highest number of overlapping generations seen.
func (m *Model) PeakConcurrency() int { return int(m.peak.Load()) }

// Calls returns the params of every generation so far.
func (m *Model) Calls() []synth.Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]synth.Params(nil), m.calls...)
}

// Loader counts invocations and returns models built by Make.
type Loader struct {
	Make  func() synth.Model
	Err   error
	Delay time.Duration

	calls atomic.Int32
}

// Load implements synth.Loader.
func (l *Loader) Load(ctx context.Context) (synth.Model, error) {
	l.calls.Add(1)
	if l.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.Delay):
		}
	}
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Make(), nil
}

// Calls reports how many times Load ran.
func (l *Loader) Calls() int { return int(l.calls.Load()) }

// StaticLoader returns a Loader that always yields m.
func StaticLoader(m synth.Model) *Loader {
	return &Loader{Make: func() synth.Model { return m }}
}
