package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voxd/internal/synth"
	"voxd/internal/synth/synthtest"
)

func TestNewWithConfigDefaults(t *testing.T) {
	m := NewWithConfig(ManagerConfig{})
	if m.watchInterval != defaultWatchInterval {
		t.Fatalf("expected default watchInterval=%v got %v", defaultWatchInterval, m.watchInterval)
	}
	if m.IdleTimeout() != 0 {
		t.Fatalf("expected idle eviction disabled by default")
	}
	if m.IsLoaded() {
		t.Fatalf("new manager must not hold a model")
	}
	if m.Snapshot().State != StateUnloaded {
		t.Fatalf("unexpected state %q", m.Snapshot().State)
	}
}

func TestConcurrentAcquireLoadsOnce(t *testing.T) {
	m, l, made := newTestManager(t, ManagerConfig{})
	l.Delay = 20 * time.Millisecond

	const n = 16
	var wg sync.WaitGroup
	models := make([]synth.Model, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lease, err := m.Acquire(testCtx(t))
			if err != nil {
				errs[i] = err
				return
			}
			models[i] = lease.Model()
			lease.Release()
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if l.Calls() != 1 {
		t.Fatalf("loader called %d times, want 1", l.Calls())
	}
	for i := 1; i < n; i++ {
		if models[i] != models[0] {
			t.Fatalf("caller %d observed a different model", i)
		}
	}
	if len(*made) != 1 {
		t.Fatalf("expected one model built, got %d", len(*made))
	}
}

func TestUseSerializesGeneration(t *testing.T) {
	fake := synthtest.New(3, 8)
	fake.Delay = 2 * time.Millisecond
	m := NewWithConfig(ManagerConfig{Loader: synthtest.StaticLoader(fake).Load})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.use(testCtx(t), func(model synth.Model) error {
				_, err := model.Generate(context.Background(), synth.DefaultParams("hi"))
				return err
			})
			if err != nil {
				t.Errorf("use: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := fake.PeakConcurrency(); got != 1 {
		t.Fatalf("peak concurrency %d, want 1", got)
	}
	if len(fake.Calls()) != 8 {
		t.Fatalf("expected 8 generations, got %d", len(fake.Calls()))
	}
}

func TestForceEvictThenReload(t *testing.T) {
	m, l, made := newTestManager(t, ManagerConfig{})
	lease, err := m.Acquire(testCtx(t))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	lease.Release()

	evicted, err := m.ForceEvict(testCtx(t))
	if err != nil || !evicted {
		t.Fatalf("force evict: evicted=%v err=%v", evicted, err)
	}
	if m.IsLoaded() {
		t.Fatalf("model still loaded after evict")
	}
	if (*made)[0].Closed() != 1 {
		t.Fatalf("evicted model closed %d times", (*made)[0].Closed())
	}
	// Idempotent.
	evicted, err = m.ForceEvict(testCtx(t))
	if err != nil || evicted {
		t.Fatalf("second evict: evicted=%v err=%v", evicted, err)
	}

	lease, err = m.Acquire(testCtx(t))
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	lease.Release()
	if l.Calls() != 2 {
		t.Fatalf("loader calls=%d, want 2", l.Calls())
	}
	if lease.Model() == synth.Model((*made)[0]) {
		t.Fatalf("expected a fresh model after reload")
	}
}

func TestForceEvictWaitsForLease(t *testing.T) {
	m, _, _ := newTestManager(t, ManagerConfig{})
	lease, err := m.Acquire(testCtx(t))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	done := make(chan struct{})
	go func() {
		_, _ = m.ForceEvict(context.Background())
		close(done)
	}()
	select {
	case <-done:
		t.Fatalf("evict completed while lease outstanding")
	case <-time.After(30 * time.Millisecond):
	}
	if !m.IsLoaded() {
		t.Fatalf("IsLoaded must stay true and not block during a lease")
	}
	lease.Release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("evict did not proceed after release")
	}
}

func TestAcquireHonoursContextWhileWaiting(t *testing.T) {
	m, _, _ := newTestManager(t, ManagerConfig{})
	lease, err := m.Acquire(testCtx(t))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer lease.Release()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestLoadFailureLeavesStateCleanAndRetries(t *testing.T) {
	boom := errors.New("weights missing")
	fake := synthtest.New(1, 1)
	l := &synthtest.Loader{Err: boom, Make: func() synth.Model { return fake }}
	pub := NewMemoryPublisher()
	m := NewWithConfig(ManagerConfig{Loader: l.Load, Publisher: pub})

	_, err := m.Acquire(testCtx(t))
	if !IsModelLoadFailure(err) || !errors.Is(err, boom) {
		t.Fatalf("expected load failure wrapping cause, got %v", err)
	}
	if m.IsLoaded() || m.Snapshot().State != StateUnloaded {
		t.Fatalf("state not clean after load failure: %+v", m.Snapshot())
	}
	if m.Snapshot().Err == "" {
		t.Fatalf("expected last error recorded")
	}

	l.Err = nil
	lease, err := m.Acquire(testCtx(t))
	if err != nil {
		t.Fatalf("retry acquire: %v", err)
	}
	lease.Release()
	if l.Calls() != 2 {
		t.Fatalf("loader calls=%d, want 2", l.Calls())
	}
	if m.Snapshot().Err != "" {
		t.Fatalf("last error should clear after a successful load")
	}
	if pub.Count(EventLoadError) != 1 || pub.Count(EventLoadDone) != 1 || pub.Count(EventLoadStart) != 2 {
		t.Fatalf("unexpected events: %+v", pub.Events())
	}
}

func TestLoaderPanicReleasesSlot(t *testing.T) {
	calls := 0
	m := NewWithConfig(ManagerConfig{Loader: func(context.Context) (synth.Model, error) {
		calls++
		if calls == 1 {
			panic("cuda exploded")
		}
		return synthtest.New(1, 1), nil
	}})
	if _, err := m.Acquire(testCtx(t)); !IsModelLoadFailure(err) {
		t.Fatalf("expected load failure, got %v", err)
	}
	lease, err := m.Acquire(testCtx(t))
	if err != nil {
		t.Fatalf("slot leaked after panic: %v", err)
	}
	lease.Release()
}

func TestNoLoaderIsLoadFailure(t *testing.T) {
	m := NewWithConfig(ManagerConfig{})
	if _, err := m.Acquire(testCtx(t)); !IsModelLoadFailure(err) {
		t.Fatalf("expected load failure, got %v", err)
	}
}

func TestUseEvictsOnError(t *testing.T) {
	m, l, made := newTestManager(t, ManagerConfig{})
	err := m.use(testCtx(t), func(synth.Model) error { return synthtest.ErrInjected })
	if !IsGenerationFailure(err) || !errors.Is(err, synthtest.ErrInjected) {
		t.Fatalf("expected generation failure, got %v", err)
	}
	if m.IsLoaded() {
		t.Fatalf("model should be evicted after a generation fault")
	}
	if (*made)[0].Closed() != 1 {
		t.Fatalf("poisoned model not closed")
	}
	if err := m.use(testCtx(t), func(synth.Model) error { return nil }); err != nil {
		t.Fatalf("use after eviction: %v", err)
	}
	if l.Calls() != 2 {
		t.Fatalf("expected reload, loader calls=%d", l.Calls())
	}
}

func TestLeaseReleaseIdempotent(t *testing.T) {
	m, _, _ := newTestManager(t, ManagerConfig{})
	lease, err := m.Acquire(testCtx(t))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	lease.Release()
	lease.Release()
	lease.Evict(ReasonGeneration)
	if !m.IsLoaded() {
		t.Fatalf("evict after release must be a no-op")
	}
	// A double release would let two acquisitions through at once.
	l1, err := m.Acquire(testCtx(t))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer l1.Release()
	if m.slot.TryAcquire(1) {
		t.Fatalf("slot should be held")
	}
}
