package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `addr: ":9999"
idle_timeout: 90s
voices_dir: /v
sidecar:
  command: voxcpm-worker
  args: ["--device", "cuda"]
  ready_timeout: 2m
cors:
  enabled: true
  origins: ["http://localhost:5173"]
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.VoicesDir != "/v" || cfg.Idle() != 90*time.Second {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Sidecar.Command != "voxcpm-worker" || len(cfg.Sidecar.Args) != 2 || cfg.Sidecar.ReadyTimeout.Duration != 2*time.Minute {
		t.Fatalf("unexpected sidecar: %+v", cfg.Sidecar)
	}
	if !cfg.CORS.Enabled || cfg.CORS.Origins[0] != "http://localhost:5173" {
		t.Fatalf("unexpected cors: %+v", cfg.CORS)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","idle_timeout":"0s","sample_rate":24000,"transcription":{"url":"http://whisper:9000/v1"}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.IdleTimeout == nil || cfg.Idle() != 0 || cfg.SampleRate != 24000 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Transcription.URL != "http://whisper:9000/v1" {
		t.Fatalf("unexpected transcription: %+v", cfg.Transcription)
	}
	// An explicit zero idle timeout survives defaults.
	if got := cfg.WithDefaults().Idle(); got != 0 {
		t.Fatalf("explicit 0s idle timeout overwritten: %v", got)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nwatch_interval=\"2s\"\n[sidecar]\nurl=\"http://127.0.0.1:31001\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.WatchInterval.Duration != 2*time.Second || cfg.Sidecar.URL != "http://127.0.0.1:31001" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	p = writeTempFile(t, d, "dur.yaml", "idle_timeout: soon\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected duration parse error")
	}
}

func TestResolveLayersEnvAndDefaults(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: \":1234\"\nlog_level: debug\n")
	env := map[string]string{"VOXD_ADDR": ":4321", "HF_REPO_ID": "openbmb/VoxCPM-0.5B"}
	cfg, err := Resolve(p, func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Addr != ":4321" || cfg.LogLevel != "debug" || cfg.ModelRepo != "openbmb/VoxCPM-0.5B" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Idle() != DefaultIdleTimeout || cfg.SampleRate != DefaultSampleRate || cfg.FFmpegBin != "ffmpeg" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestResolveWithoutFile(t *testing.T) {
	cfg, err := Resolve("", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Addr != DefaultAddr || cfg.Sidecar.PortStart != DefaultPortStart || cfg.StreamWriteTimeout.Duration != DefaultWriteTimeout {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}
