package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxd/internal/audio"
	"voxd/internal/manager"
	"voxd/internal/synth"
	"voxd/internal/synth/synthtest"
	"voxd/internal/voice"
)

type stubVoices struct{ res voice.Resolution }

func (s stubVoices) Resolve(_ context.Context, id string) (voice.Resolution, error) {
	r := s.res
	r.Requested = id
	return r, nil
}

type stubEncoder struct{ err error }

func (s stubEncoder) Encode(_ context.Context, wav []byte, f audio.Format) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]byte("ENC:"+string(f)), wav[:8]...), nil
}

func (s stubEncoder) Normalize(context.Context, []byte, int) ([]byte, error) { return nil, s.err }

// recordingSink captures everything the pipeline emits.
type recordingSink struct {
	mu         sync.Mutex
	header     *Header
	data       []byte
	writes     int
	firstWrite time.Time
	onWrite    func()
	failAfter  int
}

func (s *recordingSink) Begin(h Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = &h
	return nil
}

func (s *recordingSink) Write(p []byte) error {
	s.mu.Lock()
	if s.writes == 0 {
		s.firstWrite = time.Now()
	}
	s.writes++
	n := s.writes
	s.data = append(s.data, p...)
	cb := s.onWrite
	s.mu.Unlock()
	if cb != nil {
		cb()
	}
	if s.failAfter > 0 && n >= s.failAfter {
		return errors.New("broken pipe")
	}
	return nil
}

type fixture struct {
	p    *Pipeline
	mgr  *manager.Manager
	m    *synthtest.Model
	reg  *prometheus.Registry
	mets *Metrics
}

func newFixture(t *testing.T, m *synthtest.Model, enc audio.Encoder, v Voices) fixture {
	t.Helper()
	mgr := manager.NewWithConfig(manager.ManagerConfig{Loader: synthtest.StaticLoader(m).Load, Logger: zerolog.Nop()})
	reg := prometheus.NewRegistry()
	mets := NewMetrics(reg)
	p := New(Config{Models: mgr, Voices: v, Encoder: enc, Metrics: mets, Logger: zerolog.Nop()})
	return fixture{p: p, mgr: mgr, m: m, reg: reg, mets: mets}
}

func request(f audio.Format) Request {
	return Request{ID: "req-1", Voice: "alloy", Format: f, Params: synth.DefaultParams("hello world")}
}

func TestPCMStreamsConditionedChunks(t *testing.T) {
	m := synthtest.New(3, 4096)
	fx := newFixture(t, m, nil, stubVoices{res: voice.Resolution{Identity: voice.Identity{ID: "default", ReferenceAudioPath: "/voices/default.wav", ReferenceTranscript: "ref"}}})
	sink := &recordingSink{}

	res, err := fx.p.Run(context.Background(), request(audio.PCM), sink)
	require.NoError(t, err)
	require.NotNil(t, sink.header)
	assert.Equal(t, audio.PCM, sink.header.Format)
	assert.Equal(t, "audio/pcm", sink.header.MediaType)
	assert.Equal(t, 16000, sink.header.SampleRate)
	assert.Equal(t, 3, sink.writes, "one write per chunk")
	assert.Equal(t, 3*4096*2, len(sink.data))
	assert.Equal(t, 3*4096, res.Samples)
	assert.False(t, res.Partial)

	samples := audio.DecodePCM16(sink.data)
	assert.Equal(t, float32(0), samples[0], "fade-in starts at zero")
	assert.Less(t, samples[10], samples[1000])
	assert.InDelta(t, 0.25, samples[3000], 0.01)

	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/voices/default.wav", calls[0].PromptWavPath)
	assert.Equal(t, "ref", calls[0].PromptText)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.mets.requests.WithLabelValues("pcm", "ok")))
}

func TestRawFirstBytePrecedesContainerFirstByte(t *testing.T) {
	newModel := func() *synthtest.Model {
		m := synthtest.New(5, 256)
		m.Delay = 20 * time.Millisecond
		return m
	}
	measure := func(f audio.Format) time.Duration {
		fx := newFixture(t, newModel(), stubEncoder{}, nil)
		sink := &recordingSink{}
		start := time.Now()
		_, err := fx.p.Run(context.Background(), request(f), sink)
		require.NoError(t, err)
		return sink.firstWrite.Sub(start)
	}
	raw := measure(audio.PCM)
	container := measure(audio.MP3)
	assert.Less(t, raw, container)
	assert.GreaterOrEqual(t, container, 5*20*time.Millisecond, "container bytes only after full generation")
}

func TestContainerEncodes(t *testing.T) {
	fx := newFixture(t, synthtest.New(2, 100), stubEncoder{}, nil)
	sink := &recordingSink{}
	res, err := fx.p.Run(context.Background(), request(audio.Opus), sink)
	require.NoError(t, err)
	assert.Equal(t, audio.Opus, sink.header.Format)
	assert.Equal(t, "audio/opus", sink.header.MediaType)
	assert.False(t, sink.header.AudioFallback)
	assert.Equal(t, "ENC:opus", string(sink.data[:8]))
	assert.Equal(t, 1, sink.writes)
	assert.Equal(t, 200, res.Samples)
}

func TestEncoderFailureFallsBackToWAV(t *testing.T) {
	fx := newFixture(t, synthtest.New(2, 100), stubEncoder{err: errors.New("libmp3lame missing")}, nil)
	sink := &recordingSink{}
	_, err := fx.p.Run(context.Background(), request(audio.MP3), sink)
	require.NoError(t, err)
	assert.True(t, sink.header.AudioFallback)
	assert.Equal(t, audio.WAV, sink.header.Format)
	assert.Equal(t, "audio/wav", sink.header.MediaType)
	info, err := audio.ParseWAV(sink.data)
	require.NoError(t, err)
	assert.Equal(t, 200, info.Frames())
	assert.Equal(t, 16000, info.SampleRate)
	assert.Equal(t, 1.0, testutil.ToFloat64(fx.mets.fallbacks.WithLabelValues("mp3")))
}

func TestWAVNeedsNoEncoder(t *testing.T) {
	fx := newFixture(t, synthtest.New(1, 50), nil, nil)
	sink := &recordingSink{}
	_, err := fx.p.Run(context.Background(), request(audio.WAV), sink)
	require.NoError(t, err)
	assert.False(t, sink.header.AudioFallback)
	_, err = audio.ParseWAV(sink.data)
	require.NoError(t, err)
}

func TestGenerationFailureBeforeStreamEvicts(t *testing.T) {
	m := synthtest.New(3, 10)
	m.FailAfter = 1
	fx := newFixture(t, m, stubEncoder{}, nil)
	sink := &recordingSink{}
	_, err := fx.p.Run(context.Background(), request(audio.MP3), sink)
	require.Error(t, err)
	assert.True(t, manager.IsGenerationFailure(err))
	assert.Nil(t, sink.header, "nothing may be sent before a buffered failure")
	assert.False(t, fx.mgr.IsLoaded())
	assert.Equal(t, 1, m.Closed())
}

func TestGenerationFailureMidStreamCutsBody(t *testing.T) {
	m := synthtest.New(3, 10)
	m.FailAfter = 2
	fx := newFixture(t, m, nil, nil)
	sink := &recordingSink{}
	res, err := fx.p.Run(context.Background(), request(audio.PCM), sink)
	require.Error(t, err)
	assert.True(t, manager.IsGenerationFailure(err))
	assert.True(t, res.Partial)
	assert.Equal(t, 2, sink.writes)
	assert.False(t, fx.mgr.IsLoaded())
}

func TestClientDisconnectDoesNotCancelGeneration(t *testing.T) {
	m := synthtest.New(4, 10)
	m.Delay = 5 * time.Millisecond
	fx := newFixture(t, m, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{onWrite: cancel, failAfter: 1}

	res, err := fx.p.Run(ctx, request(audio.PCM), sink)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, 40, res.Samples, "generation ran to completion")
	assert.Equal(t, 1, sink.writes, "no writes after the sink failed")
	assert.True(t, fx.mgr.IsLoaded(), "a disconnect is not a model fault")
}

func TestBaseContextBoundsGeneration(t *testing.T) {
	m := synthtest.New(100, 10)
	m.Delay = 5 * time.Millisecond
	base, stop := context.WithCancel(context.Background())
	mgr := manager.NewWithConfig(manager.ManagerConfig{Loader: synthtest.StaticLoader(m).Load})
	p := New(Config{Models: mgr, Base: base, Logger: zerolog.Nop()})
	sink := &recordingSink{onWrite: stop}
	_, err := p.Run(context.Background(), request(audio.PCM), sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVoiceFallbackIsSurfaced(t *testing.T) {
	fx := newFixture(t, synthtest.New(1, 10), nil, stubVoices{res: voice.Resolution{Fallback: true}})
	sink := &recordingSink{}
	res, err := fx.p.Run(context.Background(), request(audio.PCM), sink)
	require.NoError(t, err)
	assert.True(t, res.Voice.Fallback)
	assert.True(t, sink.header.VoiceFallback)
}

func TestInvalidParamsRejectedBeforeAcquire(t *testing.T) {
	m := synthtest.New(1, 10)
	fx := newFixture(t, m, nil, nil)
	req := request(audio.PCM)
	req.Params.Text = "   "
	_, err := fx.p.Run(context.Background(), req, &recordingSink{})
	assert.ErrorIs(t, err, synth.ErrInvalidParams)
	assert.False(t, fx.mgr.IsLoaded())
}

func TestAdhocPromptMissing(t *testing.T) {
	fx := newFixture(t, synthtest.New(1, 10), nil, nil)
	req := request(audio.WAV)
	req.Params.PromptWavPath = "/nope/ref.wav"
	_, err := fx.p.Synthesize(context.Background(), req)
	assert.True(t, voice.IsVoiceNotFound(err))
}

func TestSynthesizeReturnsConditionedWAV(t *testing.T) {
	m := synthtest.New(2, 3000)
	m.Rate = 44100
	fx := newFixture(t, m, nil, nil)
	out, err := fx.p.Synthesize(context.Background(), request(audio.MP3))
	require.NoError(t, err)
	assert.Equal(t, 44100, out.SampleRate)
	assert.Equal(t, 6000, out.Samples)
	info, err := audio.ParseWAV(out.WAV)
	require.NoError(t, err)
	assert.Equal(t, 6000, info.Frames())
	pcm := audio.DecodePCM16(out.WAV[info.DataOffset:])
	assert.Equal(t, float32(0), pcm[0])
}

func TestSynthesizeFailureEvicts(t *testing.T) {
	m := synthtest.New(2, 10)
	m.FailAfter = 1
	fx := newFixture(t, m, nil, nil)
	_, err := fx.p.Synthesize(context.Background(), request(audio.WAV))
	assert.True(t, manager.IsGenerationFailure(err))
	assert.False(t, fx.mgr.IsLoaded())
}

func TestSerializedAcrossConcurrentRuns(t *testing.T) {
	m := synthtest.New(3, 10)
	m.Delay = time.Millisecond
	fx := newFixture(t, m, stubEncoder{}, nil)
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f := audio.PCM
			if i%2 == 0 {
				f = audio.FLAC
			}
			_, err := fx.p.Run(context.Background(), request(f), &recordingSink{})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, m.PeakConcurrency())
}

// blockingSink accepts the header, then blocks every Write until release
// is closed.
type blockingSink struct {
	release chan struct{}
	writes  atomic.Int32
}

func (s *blockingSink) Begin(Header) error { return nil }

func (s *blockingSink) Write([]byte) error {
	s.writes.Add(1)
	<-s.release
	return errors.New("write timed out")
}

func TestStalledReaderDoesNotHoldModel(t *testing.T) {
	m := synthtest.New(sinkQueue*3, 16)
	mgr := manager.NewWithConfig(manager.ManagerConfig{Loader: synthtest.StaticLoader(m).Load, Logger: zerolog.Nop()})
	p := New(Config{Models: mgr, Logger: zerolog.Nop(), StallTimeout: 20 * time.Millisecond})
	sink := &blockingSink{release: make(chan struct{})}

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := p.Run(context.Background(), request(audio.PCM), sink)
		done <- outcome{res, err}
	}()
	require.Eventually(t, func() bool { return sink.writes.Load() == 1 }, 2*time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	lease, err := mgr.Acquire(ctx)
	require.NoError(t, err, "a stalled reader must not keep the use-slot")
	lease.Release()
	evicted, err := mgr.ForceEvict(ctx)
	require.NoError(t, err)
	assert.True(t, evicted)

	select {
	case <-done:
		t.Fatalf("run returned while its write was still blocked")
	default:
	}
	close(sink.release)
	select {
	case o := <-done:
		require.NoError(t, o.err)
		assert.True(t, o.res.Partial)
		assert.Equal(t, sinkQueue*3*16, o.res.Samples, "generation ran to completion")
		assert.Equal(t, int32(1), sink.writes.Load(), "no writes after the client stalled")
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after the write was released")
	}
}
