package synth

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// SidecarConfig describes how to reach the model worker process. The worker
// owns the accelerator and speaks a small HTTP protocol:
//
//	GET  /health    200 once weights are resident
//	GET  /info      {"sample_rate": 44100, "model": "..."}
//	GET  /memory    {"device_name": "...", "allocated_bytes": n, "reserved_bytes": n}
//	POST /generate  Params JSON (+ "stream": bool) -> framed float32 stream
//	POST /unload    drop weights (attach mode only)
//
// A generate response is a sequence of frames, each a little-endian uint32
// sample count followed by that many little-endian float32 samples. A frame
// with count 0 terminates the stream; a body that ends without it is a
// failed generation.
type SidecarConfig struct {
	// URL attaches to an already running worker. When empty, Command is
	// spawned on a free port and stopped on Close.
	URL string
	// Command and Args start the worker. The chosen port is passed via
	// --port and the model id via --model.
	Command string
	Args    []string
	Env     []string
	// Model is the upstream model id (e.g. a Hugging Face repo id).
	Model string
	Host  string
	// PortStart/PortEnd restrict the spawn port range. Zero picks any port.
	PortStart int
	PortEnd   int
	// ReadyTimeout bounds the wait for /health after spawning.
	ReadyTimeout time.Duration
	Logger       zerolog.Logger
}

const (
	defaultReadyTimeout = 5 * time.Minute
	maxFrameSamples     = 1 << 24
)

// NewSidecarLoader returns a Loader that spawns or attaches to the worker.
func NewSidecarLoader(cfg SidecarConfig) Loader {
	return func(ctx context.Context) (Model, error) {
		return StartSidecar(ctx, cfg)
	}
}

// SidecarModel is a Model backed by the worker process.
type SidecarModel struct {
	cfg        SidecarConfig
	baseURL    string
	sampleRate int
	httpClient *http.Client
	log        zerolog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
	closed bool
}

var _ Model = (*SidecarModel)(nil)
var _ MemoryReporter = (*SidecarModel)(nil)

// StartSidecar spawns the worker (or attaches to cfg.URL), waits until it is
// healthy and reads its sample rate.
func StartSidecar(ctx context.Context, cfg SidecarConfig) (*SidecarModel, error) {
	if strings.TrimSpace(cfg.URL) == "" && strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("sidecar: either url or command must be set")
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	// Timeout=0: every call carries its own context deadline.
	m := &SidecarModel{cfg: cfg, httpClient: &http.Client{Timeout: 0}, log: cfg.Logger}

	if cfg.URL != "" {
		m.baseURL = strings.TrimRight(cfg.URL, "/")
		if err := m.waitReady(ctx, nil); err != nil {
			return nil, err
		}
	} else if err := m.spawn(ctx); err != nil {
		return nil, err
	}

	info, err := m.info(ctx)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	if info.SampleRate <= 0 {
		_ = m.Close()
		return nil, fmt.Errorf("sidecar: invalid sample rate %d", info.SampleRate)
	}
	m.sampleRate = info.SampleRate
	m.log.Info().Str("url", m.baseURL).Int("sample_rate", m.sampleRate).Str("model", info.Model).Msg("sidecar ready")
	return m, nil
}

func (m *SidecarModel) spawn(ctx context.Context) error {
	host := strings.TrimSpace(m.cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	var port int
	var err error
	if m.cfg.PortStart > 0 && m.cfg.PortEnd >= m.cfg.PortStart {
		port, err = pickPortInRange(host, m.cfg.PortStart, m.cfg.PortEnd)
	} else {
		port, err = pickFreePort(host)
	}
	if err != nil {
		return fmt.Errorf("sidecar: %w", err)
	}
	m.baseURL = fmt.Sprintf("http://%s:%d", host, port)

	args := append([]string(nil), m.cfg.Args...)
	args = append(args, "--host", host, "--port", strconv.Itoa(port))
	if m.cfg.Model != "" {
		args = append(args, "--model", m.cfg.Model)
	}
	cmd := exec.Command(m.cfg.Command, args...)
	cmd.Env = append(os.Environ(), m.cfg.Env...)
	stdout := newOutputWriter(m.log, "stdout")
	stderr := newOutputWriter(m.log, "stderr")
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Wait also waits for the output copiers; a grandchild holding the pipes
	// must not keep it from returning.
	cmd.WaitDelay = 5 * time.Second
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("sidecar: start %s: %w", m.cfg.Command, err)
	}
	exited := make(chan struct{})
	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		stdout.Flush()
		stderr.Flush()
		waitErr <- err
		close(exited)
	}()
	m.mu.Lock()
	m.cmd = cmd
	m.exited = exited
	m.mu.Unlock()
	m.log.Info().Int("pid", cmd.Process.Pid).Str("url", m.baseURL).Msg("sidecar spawned")

	if err := m.waitReady(ctx, waitErr); err != nil {
		// Wait has returned once stopProcess does, so the output is complete.
		_ = m.stopProcess()
		if tail := stderr.Tail(); tail != "" {
			return fmt.Errorf("%w; stderr tail: %s", err, tail)
		}
		return err
	}
	return nil
}

// waitReady polls /health until success, ctx is done, the ready timeout
// elapses, or the spawned process exits.
func (m *SidecarModel) waitReady(ctx context.Context, waitErr <-chan error) error {
	deadline := time.Now().Add(m.cfg.ReadyTimeout)
	for {
		if waitErr != nil {
			select {
			case werr := <-waitErr:
				if werr != nil {
					return fmt.Errorf("sidecar exited early: %w", werr)
				}
				return errors.New("sidecar exited before ready")
			default:
			}
		}
		if m.healthy(ctx, 2*time.Second) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("sidecar not ready after %s", m.cfg.ReadyTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (m *SidecarModel) healthy(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

type sidecarInfo struct {
	SampleRate int    `json:"sample_rate"`
	Model      string `json:"model"`
}

func (m *SidecarModel) info(ctx context.Context) (sidecarInfo, error) {
	var out sidecarInfo
	err := m.getJSON(ctx, "/info", &out)
	return out, err
}

func (m *SidecarModel) getJSON(ctx context.Context, path string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sidecar %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sidecar %s: %s: %s", path, resp.Status, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("sidecar %s: decode: %w", path, err)
	}
	return nil
}

// SampleRate implements Model.
func (m *SidecarModel) SampleRate() int { return m.sampleRate }

// BaseURL returns the worker endpoint.
func (m *SidecarModel) BaseURL() string { return m.baseURL }

// PID returns the spawned worker's process id, or 0 in attach mode.
func (m *SidecarModel) PID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd == nil || m.cmd.Process == nil {
		return 0
	}
	return m.cmd.Process.Pid
}

// Memory implements MemoryReporter.
func (m *SidecarModel) Memory(ctx context.Context) (Memory, error) {
	var mem Memory
	err := m.getJSON(ctx, "/memory", &mem)
	return mem, err
}

// Generate implements Model.
func (m *SidecarModel) Generate(ctx context.Context, p Params) ([]float32, error) {
	var out []float32
	err := m.generate(ctx, p, false, func(chunk []float32) error {
		out = append(out, chunk...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateStream implements Model.
func (m *SidecarModel) GenerateStream(ctx context.Context, p Params, onChunk func([]float32) error) error {
	return m.generate(ctx, p, true, onChunk)
}

type generateRequest struct {
	Params
	Stream bool `json:"stream"`
}

func (m *SidecarModel) generate(ctx context.Context, p Params, stream bool, onChunk func([]float32) error) error {
	body, err := json.Marshal(generateRequest{Params: p, Stream: stream})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("sidecar generate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sidecar generate: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	return ReadFrames(bufio.NewReader(resp.Body), onChunk)
}

// ReadFrames decodes the worker's framed float32 stream, calling onChunk for
// every non-empty frame until the terminating zero-length frame.
func ReadFrames(r io.Reader, onChunk func([]float32) error) error {
	var hdr [4]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return errors.New("sidecar stream truncated")
			}
			return err
		}
		n := binary.LittleEndian.Uint32(hdr[:])
		if n == 0 {
			return nil
		}
		if n > maxFrameSamples {
			return fmt.Errorf("sidecar frame too large: %d samples", n)
		}
		raw := make([]byte, int(n)*4)
		if _, err := io.ReadFull(r, raw); err != nil {
			return fmt.Errorf("sidecar stream truncated: %w", err)
		}
		chunk := make([]float32, n)
		for i := range chunk {
			chunk[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		if err := onChunk(chunk); err != nil {
			return err
		}
	}
}

// WriteFrame encodes one frame of the worker protocol. An empty chunk writes
// the terminator.
func WriteFrame(w io.Writer, chunk []float32) error {
	buf := make([]byte, 4+4*len(chunk))
	binary.LittleEndian.PutUint32(buf, uint32(len(chunk)))
	for i, s := range chunk {
		binary.LittleEndian.PutUint32(buf[4+i*4:], math.Float32bits(s))
	}
	_, err := w.Write(buf)
	return err
}

// Close implements Model. A spawned worker is terminated; an attached worker
// is asked to drop its weights.
func (m *SidecarModel) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	spawned := m.cmd != nil
	m.mu.Unlock()

	if spawned {
		return m.stopProcess()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/unload", nil)
	if err != nil {
		return err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sidecar unload: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sidecar unload: %s", resp.Status)
	}
	return nil
}

// stopProcess sends SIGTERM and falls back to SIGKILL after a grace period.
func (m *SidecarModel) stopProcess() error {
	m.mu.Lock()
	cmd, exited := m.cmd, m.exited
	m.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		<-exited
	}
	m.log.Info().Int("pid", cmd.Process.Pid).Msg("sidecar stopped")
	return nil
}

func pickPortInRange(host string, start, end int) (int, error) {
	for p := start; p <= end; p++ {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
