package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeWorker implements the sidecar protocol in-process.
type fakeWorker struct {
	chunks   [][]float32
	truncate bool
	unloads  atomic.Int32

	mu   sync.Mutex
	last generateRequest
}

func (f *fakeWorker) lastRequest() generateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeWorker) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"sample_rate": 44100, "model": "fake"})
	})
	mux.HandleFunc("/memory", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Memory{Device: "fake-gpu", AllocatedBytes: 1 << 30, ReservedBytes: 2 << 30})
	})
	mux.HandleFunc("/unload", func(w http.ResponseWriter, r *http.Request) {
		f.unloads.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/generate", func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.last = req
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/octet-stream")
		for _, c := range f.chunks {
			_ = WriteFrame(w, c)
		}
		if !f.truncate {
			_ = WriteFrame(w, nil)
		}
	})
	return mux
}

func startWorker(t *testing.T, f *fakeWorker) *SidecarModel {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, err := StartSidecar(ctx, SidecarConfig{URL: srv.URL, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return m
}

func TestSidecarAttachAndStream(t *testing.T) {
	f := &fakeWorker{chunks: [][]float32{{0.1, 0.2}, {0.3}}}
	m := startWorker(t, f)
	if m.SampleRate() != 44100 {
		t.Fatalf("sample rate=%d", m.SampleRate())
	}
	var got [][]float32
	err := m.GenerateStream(context.Background(), DefaultParams("hi"), func(c []float32) error {
		got = append(got, c)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(got) != 2 || len(got[0]) != 2 || got[1][0] != 0.3 {
		t.Fatalf("unexpected chunks: %v", got)
	}
	if last := f.lastRequest(); !last.Stream || last.Text != "hi" {
		t.Fatalf("unexpected request: %+v", last)
	}
}

func TestSidecarGenerateConcatenates(t *testing.T) {
	f := &fakeWorker{chunks: [][]float32{{0.1, 0.2}, {0.3}}}
	m := startWorker(t, f)
	out, err := m.Generate(context.Background(), DefaultParams("hi"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(out) != 3 || f.lastRequest().Stream {
		t.Fatalf("out=%v stream=%v", out, f.lastRequest().Stream)
	}
}

func TestSidecarTruncatedStreamFails(t *testing.T) {
	f := &fakeWorker{chunks: [][]float32{{0.1}}, truncate: true}
	m := startWorker(t, f)
	if _, err := m.Generate(context.Background(), DefaultParams("hi")); err == nil {
		t.Fatalf("expected truncated stream error")
	}
}

func TestSidecarMemoryAndClose(t *testing.T) {
	f := &fakeWorker{}
	m := startWorker(t, f)
	mem, err := m.Memory(context.Background())
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if mem.Device != "fake-gpu" || mem.AllocatedBytes != 1<<30 {
		t.Fatalf("unexpected memory: %+v", mem)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if f.unloads.Load() != 1 {
		t.Fatalf("expected exactly one unload, got %d", f.unloads.Load())
	}
}

func TestStartSidecarRequiresTarget(t *testing.T) {
	if _, err := StartSidecar(context.Background(), SidecarConfig{}); err == nil {
		t.Fatalf("expected error without url or command")
	}
}

func TestStartSidecarSpawnFailure(t *testing.T) {
	_, err := StartSidecar(context.Background(), SidecarConfig{Command: "/definitely/not/a/worker", Logger: zerolog.Nop()})
	if err == nil {
		t.Fatalf("expected spawn error")
	}
}

func TestReadFramesCallbackError(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteFrame(&buf, []float32{1})
	_ = WriteFrame(&buf, nil)
	stop := errors.New("stop")
	if err := ReadFrames(&buf, func([]float32) error { return stop }); !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
}

func TestParamsValidate(t *testing.T) {
	p := DefaultParams("hello")
	if err := p.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	bad := []Params{
		DefaultParams("  "),
		func() Params { q := DefaultParams("x"); q.CFGValue = 9; return q }(),
		func() Params { q := DefaultParams("x"); q.InferenceTimesteps = 0; return q }(),
		func() Params { q := DefaultParams("x"); q.MaxLen = 1; q.MinLen = 5; return q }(),
		func() Params { q := DefaultParams("x"); q.RetryMaxTimes = 0; return q }(),
	}
	for i, q := range bad {
		if err := q.Validate(); !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("case %d: expected ErrInvalidParams, got %v", i, err)
		}
	}
}
