// Package synth defines the contract between the serving core and the
// speech-synthesis model, which is an external collaborator treated as a
// black box: text plus an optional reference voice in, float32 PCM out.
package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Model is a resident synthesis model. Implementations are not required to
// be safe for concurrent generation; callers serialize access through the
// lifecycle manager.
type Model interface {
	// SampleRate is the rate of every sample block the model produces.
	SampleRate() int
	// Generate synthesizes the whole utterance and returns mono float32
	// samples in [-1, 1].
	Generate(ctx context.Context, p Params) ([]float32, error)
	// GenerateStream synthesizes incrementally, invoking onChunk for each
	// block as it becomes available. The sequence is finite and cannot be
	// restarted. An error from onChunk aborts generation and is returned.
	GenerateStream(ctx context.Context, p Params, onChunk func([]float32) error) error
	// Close releases the model and the accelerator memory it holds.
	Close() error
}

// Loader creates a Model. It is the expensive path (weights to accelerator)
// and may take several seconds.
type Loader func(ctx context.Context) (Model, error)

// Memory is a pass-through of accelerator memory figures reported by the
// model runtime.
type Memory struct {
	Device         string `json:"device_name,omitempty"`
	AllocatedBytes int64  `json:"allocated_bytes"`
	ReservedBytes  int64  `json:"reserved_bytes"`
}

// MemoryReporter is implemented by models that can report accelerator usage.
type MemoryReporter interface {
	Memory(ctx context.Context) (Memory, error)
}

// Generation defaults, matching the upstream model's recommended settings.
const (
	DefaultCFGValue            = 2.0
	DefaultInferenceTimesteps  = 10
	DefaultMinLen              = 2
	DefaultMaxLen              = 4096
	DefaultRetryMaxTimes       = 3
	DefaultRetryRatioThreshold = 6.0
)

// Params are the per-call generation options.
type Params struct {
	// Text to synthesize. Required.
	Text string `json:"text"`
	// PromptWavPath is the reference audio conditioning the voice. Empty
	// means the model's own default voice.
	PromptWavPath string `json:"prompt_wav_path,omitempty"`
	// PromptText is the transcript of PromptWavPath.
	PromptText string `json:"prompt_text,omitempty"`
	// CFGValue is the classifier-free guidance scale (0.5-5.0).
	CFGValue float64 `json:"cfg_value"`
	// InferenceTimesteps trades quality for speed (higher is slower).
	InferenceTimesteps int `json:"inference_timesteps"`
	// MinLen and MaxLen bound the generated token length.
	MinLen int `json:"min_len"`
	MaxLen int `json:"max_len"`
	// Normalize enables text normalization before synthesis.
	Normalize bool `json:"normalize"`
	// Denoise enables denoising of the reference audio.
	Denoise bool `json:"denoise"`
	// RetryBadcase re-runs generations whose audio/text length ratio exceeds
	// RetryRatioThreshold, up to RetryMaxTimes.
	RetryBadcase        bool    `json:"retry_badcase"`
	RetryMaxTimes       int     `json:"retry_badcase_max_times"`
	RetryRatioThreshold float64 `json:"retry_badcase_ratio_threshold"`
}

// DefaultParams returns Params populated with the package defaults.
func DefaultParams(text string) Params {
	return Params{
		Text:                text,
		CFGValue:            DefaultCFGValue,
		InferenceTimesteps:  DefaultInferenceTimesteps,
		MinLen:              DefaultMinLen,
		MaxLen:              DefaultMaxLen,
		RetryBadcase:        true,
		RetryMaxTimes:       DefaultRetryMaxTimes,
		RetryRatioThreshold: DefaultRetryRatioThreshold,
	}
}

// ErrInvalidParams is wrapped by every Validate failure.
var ErrInvalidParams = errors.New("invalid generation parameters")

// Validate checks the ranges accepted by the model.
func (p Params) Validate() error {
	switch {
	case strings.TrimSpace(p.Text) == "":
		return fmt.Errorf("%w: text is required", ErrInvalidParams)
	case !(p.CFGValue >= 0.5 && p.CFGValue <= 5.0):
		return fmt.Errorf("%w: cfg_value must be between 0.5 and 5.0", ErrInvalidParams)
	case p.InferenceTimesteps < 1 || p.InferenceTimesteps > 100:
		return fmt.Errorf("%w: inference_timesteps must be between 1 and 100", ErrInvalidParams)
	case p.MinLen < 1:
		return fmt.Errorf("%w: min_len must be positive", ErrInvalidParams)
	case p.MaxLen < p.MinLen:
		return fmt.Errorf("%w: max_len must be >= min_len", ErrInvalidParams)
	case p.RetryBadcase && p.RetryMaxTimes < 1:
		return fmt.Errorf("%w: retry_badcase_max_times must be positive", ErrInvalidParams)
	}
	return nil
}
