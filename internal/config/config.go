package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
	// ModelRepo names the weights the sidecar loads (HF_REPO_ID).
	ModelRepo string `json:"model_repo" yaml:"model_repo" toml:"model_repo"`

	Sidecar Sidecar `json:"sidecar" yaml:"sidecar" toml:"sidecar"`

	// IdleTimeout evicts the model after this long unused; "0s" disables.
	IdleTimeout   *Duration `json:"idle_timeout" yaml:"idle_timeout" toml:"idle_timeout"`
	WatchInterval Duration  `json:"watch_interval" yaml:"watch_interval" toml:"watch_interval"`
	// StreamWriteTimeout bounds each write to a streaming client; a client
	// that stops reading longer than this is dropped.
	StreamWriteTimeout Duration `json:"stream_write_timeout" yaml:"stream_write_timeout" toml:"stream_write_timeout"`

	VoicesDir         string `json:"voices_dir" yaml:"voices_dir" toml:"voices_dir"`
	PresetsDir        string `json:"presets_dir" yaml:"presets_dir" toml:"presets_dir"`
	DefaultVoiceAudio string `json:"default_voice_audio" yaml:"default_voice_audio" toml:"default_voice_audio"`
	DefaultVoiceText  string `json:"default_voice_text" yaml:"default_voice_text" toml:"default_voice_text"`
	CacheDir          string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	OutputDir         string `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	// SampleRate of normalized reference audio.
	SampleRate int    `json:"sample_rate" yaml:"sample_rate" toml:"sample_rate"`
	FFmpegBin  string `json:"ffmpeg_bin" yaml:"ffmpeg_bin" toml:"ffmpeg_bin"`
	// MaxUploadMB bounds multipart uploads.
	MaxUploadMB int `json:"max_upload_mb" yaml:"max_upload_mb" toml:"max_upload_mb"`

	Transcription Transcription `json:"transcription" yaml:"transcription" toml:"transcription"`
	CORS          CORS          `json:"cors" yaml:"cors" toml:"cors"`
}

// Sidecar configures the model worker process. URL attaches to a running
// worker; otherwise Command is spawned.
type Sidecar struct {
	URL          string   `json:"url" yaml:"url" toml:"url"`
	Command      string   `json:"command" yaml:"command" toml:"command"`
	Args         []string `json:"args" yaml:"args" toml:"args"`
	Host         string   `json:"host" yaml:"host" toml:"host"`
	PortStart    int      `json:"port_start" yaml:"port_start" toml:"port_start"`
	PortEnd      int      `json:"port_end" yaml:"port_end" toml:"port_end"`
	ReadyTimeout Duration `json:"ready_timeout" yaml:"ready_timeout" toml:"ready_timeout"`
}

// Transcription configures the optional Whisper-compatible endpoint.
type Transcription struct {
	URL      string `json:"url" yaml:"url" toml:"url"`
	APIKey   string `json:"api_key" yaml:"api_key" toml:"api_key"`
	Model    string `json:"model" yaml:"model" toml:"model"`
	Language string `json:"language" yaml:"language" toml:"language"`
}

// CORS configures cross-origin access. Disabled unless Enabled is set.
type CORS struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// Defaults.
const (
	DefaultAddr          = ":8000"
	DefaultLogLevel      = "info"
	DefaultModelRepo     = "openbmb/VoxCPM1.5"
	DefaultIdleTimeout   = 5 * time.Minute
	DefaultWatchInterval = 5 * time.Second
	DefaultSampleRate    = 44100
	DefaultMaxUploadMB   = 25
	DefaultSidecarHost   = "127.0.0.1"
	DefaultPortStart     = 31000
	DefaultPortEnd       = 31999
	DefaultReadyTimeout  = 5 * time.Minute
	DefaultWriteTimeout  = 30 * time.Second
)

// WithDefaults returns c with every unspecified field filled in.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ModelRepo == "" {
		c.ModelRepo = DefaultModelRepo
	}
	if c.IdleTimeout == nil {
		c.IdleTimeout = &Duration{DefaultIdleTimeout}
	}
	if c.WatchInterval.Duration <= 0 {
		c.WatchInterval = Duration{DefaultWatchInterval}
	}
	if c.StreamWriteTimeout.Duration <= 0 {
		c.StreamWriteTimeout = Duration{DefaultWriteTimeout}
	}
	if c.VoicesDir == "" {
		c.VoicesDir = "~/.voxd/voices"
	}
	if c.CacheDir == "" {
		c.CacheDir = "~/.voxd/cache"
	}
	if c.OutputDir == "" {
		c.OutputDir = "~/.voxd/outputs"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.FFmpegBin == "" {
		c.FFmpegBin = "ffmpeg"
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = DefaultMaxUploadMB
	}
	if c.Sidecar.Host == "" {
		c.Sidecar.Host = DefaultSidecarHost
	}
	if c.Sidecar.PortStart == 0 && c.Sidecar.PortEnd == 0 {
		c.Sidecar.PortStart, c.Sidecar.PortEnd = DefaultPortStart, DefaultPortEnd
	}
	if c.Sidecar.ReadyTimeout.Duration <= 0 {
		c.Sidecar.ReadyTimeout = Duration{DefaultReadyTimeout}
	}
	return c
}

// ApplyEnv overlays environment variables read through getenv.
func (c Config) ApplyEnv(getenv func(string) string) Config {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Addr, "VOXD_ADDR")
	set(&c.LogLevel, "VOXD_LOG_LEVEL")
	set(&c.ModelRepo, "HF_REPO_ID")
	set(&c.Sidecar.URL, "VOXD_SIDECAR_URL")
	set(&c.Sidecar.Command, "VOXD_SIDECAR_COMMAND")
	set(&c.FFmpegBin, "VOXD_FFMPEG")
	set(&c.Transcription.URL, "VOXD_TRANSCRIBE_URL")
	set(&c.Transcription.APIKey, "VOXD_TRANSCRIBE_API_KEY")
	return c
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.IdleTimeout != nil && c.IdleTimeout.Duration < 0 {
		return fmt.Errorf("idle_timeout must not be negative")
	}
	if c.Sidecar.PortStart > c.Sidecar.PortEnd {
		return fmt.Errorf("sidecar port range %d-%d is empty", c.Sidecar.PortStart, c.Sidecar.PortEnd)
	}
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("sample_rate %d out of range", c.SampleRate)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// Idle returns the effective idle timeout.
func (c Config) Idle() time.Duration {
	if c.IdleTimeout == nil {
		return DefaultIdleTimeout
	}
	return c.IdleTimeout.Duration
}
