package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"voxd/internal/audio"
	"voxd/internal/common/fsutil"
	"voxd/internal/pipeline"
	"voxd/internal/synth"
)

// SpeechArgs are the arguments of text_to_speech.
type SpeechArgs struct {
	Text       string `json:"text" jsonschema:"text to synthesize"`
	Voice      string `json:"voice,omitempty" jsonschema:"registered voice id or preset name; the default voice when empty"`
	OutputPath string `json:"output_path,omitempty" jsonschema:"destination WAV path; relative paths land in the output directory"`

	CFGValue                   *float64 `json:"cfg_value,omitempty" jsonschema:"guidance scale 0.5-5.0 (default 2.0)"`
	InferenceTimesteps         *int     `json:"inference_timesteps,omitempty" jsonschema:"inference steps, higher is slower and cleaner (default 10)"`
	MinLen                     *int     `json:"min_len,omitempty" jsonschema:"minimum token length (default 2)"`
	MaxLen                     *int     `json:"max_len,omitempty" jsonschema:"maximum token length (default 4096)"`
	Normalize                  bool     `json:"normalize,omitempty" jsonschema:"enable text normalization"`
	Denoise                    bool     `json:"denoise,omitempty" jsonschema:"denoise the reference audio"`
	RetryBadcase               *bool    `json:"retry_badcase,omitempty" jsonschema:"retry generations with an implausible length (default true)"`
	RetryBadcaseMaxTimes       *int     `json:"retry_badcase_max_times,omitempty" jsonschema:"maximum retries (default 3)"`
	RetryBadcaseRatioThreshold *float64 `json:"retry_badcase_ratio_threshold,omitempty" jsonschema:"audio-to-text length ratio that triggers a retry (default 6.0)"`
}

// CloneArgs are the arguments of voice_cloning.
type CloneArgs struct {
	Text           string `json:"text" jsonschema:"text to synthesize with the cloned voice"`
	ReferenceAudio string `json:"reference_audio" jsonschema:"path to the reference audio file"`
	ReferenceText  string `json:"reference_text,omitempty" jsonschema:"transcript of the reference audio"`
	OutputPath     string `json:"output_path,omitempty" jsonschema:"destination WAV path; relative paths land in the output directory"`

	CFGValue                   *float64 `json:"cfg_value,omitempty" jsonschema:"guidance scale 0.5-5.0 (default 2.0)"`
	InferenceTimesteps         *int     `json:"inference_timesteps,omitempty" jsonschema:"inference steps (default 10)"`
	MinLen                     *int     `json:"min_len,omitempty" jsonschema:"minimum token length (default 2)"`
	MaxLen                     *int     `json:"max_len,omitempty" jsonschema:"maximum token length (default 4096)"`
	Normalize                  bool     `json:"normalize,omitempty" jsonschema:"enable text normalization"`
	Denoise                    bool     `json:"denoise,omitempty" jsonschema:"denoise the reference audio"`
	RetryBadcase               *bool    `json:"retry_badcase,omitempty" jsonschema:"retry generations with an implausible length (default true)"`
	RetryBadcaseMaxTimes       *int     `json:"retry_badcase_max_times,omitempty" jsonschema:"maximum retries (default 3)"`
	RetryBadcaseRatioThreshold *float64 `json:"retry_badcase_ratio_threshold,omitempty" jsonschema:"audio-to-text length ratio that triggers a retry (default 6.0)"`
}

// SpeechResult describes a written file.
type SpeechResult struct {
	Status          string  `json:"status"`
	OutputPath      string  `json:"output_path"`
	SampleRate      int     `json:"sample_rate"`
	DurationSeconds float64 `json:"duration_seconds"`
	VoiceFallback   bool    `json:"voice_fallback,omitempty"`
}

// GPUStatus is the result of get_gpu_status.
type GPUStatus struct {
	Status         string `json:"status"`
	ModelLoaded    bool   `json:"model_loaded"`
	Device         string `json:"device_name,omitempty"`
	AllocatedBytes int64  `json:"allocated_bytes,omitempty"`
	ReservedBytes  int64  `json:"reserved_bytes,omitempty"`
}

// OffloadResult is the result of offload_model.
type OffloadResult struct {
	Status  string `json:"status"`
	Evicted bool   `json:"evicted"`
	Message string `json:"message"`
}

type noArgs struct{}

func requestID() string { return "mcp-" + uuid.NewString()[:8] }

func (s *Server) register() {
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "text_to_speech",
		Description: "Synthesize text to a WAV file and return its path.",
	}, s.textToSpeech)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "voice_cloning",
		Description: "Synthesize text in the voice of a reference recording and return the WAV path.",
	}, s.voiceCloning)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "get_gpu_status",
		Description: "Report whether the model is resident and the accelerator memory it uses.",
	}, s.gpuStatus)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "offload_model",
		Description: "Release the model from accelerator memory. The next synthesis reloads it.",
	}, s.offloadModel)
}

// generation applies the optional overrides on top of the synth defaults.
func generation(text string, cfg *float64, steps, minLen, maxLen *int, normalize, denoise bool, retry *bool, retryMax *int, retryRatio *float64) synth.Params {
	p := synth.DefaultParams(text)
	if cfg != nil {
		p.CFGValue = *cfg
	}
	if steps != nil {
		p.InferenceTimesteps = *steps
	}
	if minLen != nil {
		p.MinLen = *minLen
	}
	if maxLen != nil {
		p.MaxLen = *maxLen
	}
	p.Normalize = normalize
	p.Denoise = denoise
	if retry != nil {
		p.RetryBadcase = *retry
	}
	if retryMax != nil {
		p.RetryMaxTimes = *retryMax
	}
	if retryRatio != nil {
		p.RetryRatioThreshold = *retryRatio
	}
	return p
}

func (a SpeechArgs) params() synth.Params {
	return generation(a.Text, a.CFGValue, a.InferenceTimesteps, a.MinLen, a.MaxLen,
		a.Normalize, a.Denoise, a.RetryBadcase, a.RetryBadcaseMaxTimes, a.RetryBadcaseRatioThreshold)
}

func (a CloneArgs) params() synth.Params {
	p := generation(a.Text, a.CFGValue, a.InferenceTimesteps, a.MinLen, a.MaxLen,
		a.Normalize, a.Denoise, a.RetryBadcase, a.RetryBadcaseMaxTimes, a.RetryBadcaseRatioThreshold)
	p.PromptWavPath = a.ReferenceAudio
	p.PromptText = a.ReferenceText
	return p
}

func (s *Server) textToSpeech(ctx context.Context, _ *mcp.CallToolRequest, args SpeechArgs) (*mcp.CallToolResult, SpeechResult, error) {
	req := pipeline.Request{ID: requestID(), Voice: args.Voice, Format: audio.WAV, Params: args.params()}
	res, err := s.generate(ctx, "text_to_speech", req, args.OutputPath, "tts")
	return nil, res, err
}

func (s *Server) voiceCloning(ctx context.Context, _ *mcp.CallToolRequest, args CloneArgs) (*mcp.CallToolResult, SpeechResult, error) {
	if !fsutil.IsRegularFile(args.ReferenceAudio) {
		return nil, SpeechResult{}, fmt.Errorf("reference audio not found: %s", args.ReferenceAudio)
	}
	req := pipeline.Request{ID: requestID(), Format: audio.WAV, Params: args.params()}
	res, err := s.generate(ctx, "voice_cloning", req, args.OutputPath, "clone")
	return nil, res, err
}

// generate synthesizes req into a file. Any failure releases the model so
// a wedged runtime does not keep holding accelerator memory.
func (s *Server) generate(ctx context.Context, tool string, req pipeline.Request, outputPath, prefix string) (SpeechResult, error) {
	start := time.Now()
	res, err := s.write(ctx, req, outputPath, prefix)
	if err != nil {
		if _, evErr := s.models.ForceEvict(context.WithoutCancel(ctx)); evErr != nil {
			s.log.Warn().Err(evErr).Str("tool", tool).Msg("offload after failure")
		}
		s.log.Error().Err(err).Str("tool", tool).Msg("tool failed; model offloaded")
		return SpeechResult{}, err
	}
	s.log.Info().
		Str("tool", tool).
		Str("output", res.OutputPath).
		Float64("audio_seconds", res.DurationSeconds).
		Dur("took", time.Since(start)).
		Msg("tool complete")
	return res, nil
}

func (s *Server) write(ctx context.Context, req pipeline.Request, outputPath, prefix string) (SpeechResult, error) {
	out, err := s.synth.Synthesize(ctx, req)
	if err != nil {
		return SpeechResult{}, err
	}
	path, err := s.outputPath(outputPath, prefix)
	if err != nil {
		return SpeechResult{}, err
	}
	if err := fsutil.WriteFileAtomic(path, out.WAV, 0o644); err != nil {
		return SpeechResult{}, fmt.Errorf("write %s: %w", path, err)
	}
	res := SpeechResult{
		Status:        "success",
		OutputPath:    path,
		SampleRate:    out.SampleRate,
		VoiceFallback: out.Voice.Fallback,
	}
	if out.SampleRate > 0 {
		res.DurationSeconds = float64(out.Samples) / float64(out.SampleRate)
	}
	return res, nil
}

func (s *Server) gpuStatus(ctx context.Context, _ *mcp.CallToolRequest, _ noArgs) (*mcp.CallToolResult, GPUStatus, error) {
	st := GPUStatus{Status: "success", ModelLoaded: s.models.IsLoaded()}
	if mem, ok := s.models.Memory(ctx); ok {
		st.Device = mem.Device
		st.AllocatedBytes = mem.AllocatedBytes
		st.ReservedBytes = mem.ReservedBytes
	}
	return nil, st, nil
}

func (s *Server) offloadModel(ctx context.Context, _ *mcp.CallToolRequest, _ noArgs) (*mcp.CallToolResult, OffloadResult, error) {
	evicted, err := s.models.ForceEvict(ctx)
	if err != nil {
		return nil, OffloadResult{}, err
	}
	msg := "model offloaded"
	if !evicted {
		msg = "no model was loaded"
	}
	return nil, OffloadResult{Status: "success", Evicted: evicted, Message: msg}, nil
}
