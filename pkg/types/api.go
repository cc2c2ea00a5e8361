package types

// SpeechRequest is the OpenAI-compatible body of POST /v1/audio/speech and
// the first message of the websocket stream.
type SpeechRequest struct {
	// Quality profile: tts-1, tts-1-hd or gpt-4o-mini-tts.
	// example: tts-1-hd
	Model string `json:"model,omitempty" example:"tts-1-hd"`
	// Text to synthesize (max 4096 characters).
	// example: Hello from voxd.
	Input string `json:"input" example:"Hello from voxd."`
	// Preset name or custom voice id. Unknown ids fall back to the default voice.
	// example: alloy
	Voice string `json:"voice,omitempty" example:"alloy"`
	// One of mp3, opus, aac, flac, wav, pcm.
	// example: mp3
	ResponseFormat string `json:"response_format,omitempty" example:"mp3"`
	// Accepted for compatibility (0.25-4.0), not interpreted.
	// example: 1.0
	Speed float64 `json:"speed,omitempty" example:"1.0"`
	// Classifier-free guidance scale.
	// example: 2.0
	CFGValue *float64 `json:"cfg_value,omitempty" example:"2.0"`
	// Overrides the profile's inference timesteps.
	// example: 10
	InferenceTimesteps *int `json:"inference_timesteps,omitempty" example:"10"`
	// example: false
	Normalize bool `json:"normalize,omitempty" example:"false"`
	// example: false
	Denoise bool `json:"denoise,omitempty" example:"false"`
}

// ModelsResponse is returned by GET /v1/models.
type ModelsResponse struct {
	// example: list
	Object string      `json:"object" example:"list"`
	Data   []ModelInfo `json:"data"`
}

// VoicesResponse is returned by GET /v1/voices and /v1/voices/custom.
type VoicesResponse struct {
	Voices []Voice `json:"voices"`
}

// CreateVoiceResponse is returned by POST /v1/voices/create.
type CreateVoiceResponse struct {
	// example: true
	Success bool `json:"success" example:"true"`
	// example: 3f2a9c6d8e1b4a7f9c0d2e4b6a8c1f3e
	VoiceID string `json:"voice_id" example:"3f2a9c6d8e1b4a7f9c0d2e4b6a8c1f3e"`
	// example: Narrator
	Name string `json:"name" example:"Narrator"`
	// example: voice created
	Message string `json:"message" example:"voice created"`
}

// StreamDone is the final text message of the websocket stream.
type StreamDone struct {
	Done bool `json:"done"`
	// True when the requested voice was unknown and the default was used.
	Fallback bool `json:"fallback,omitempty"`
	// Number of PCM samples sent.
	Samples int `json:"samples"`
	// Sample rate of the PCM frames.
	SampleRate int    `json:"sample_rate"`
	Error      string `json:"error,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Stable machine-readable error kind.
	// example: invalid_request
	Kind string `json:"kind" example:"invalid_request"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// example: healthy
	Status string `json:"status" example:"healthy"`
	// example: false
	ModelLoaded bool `json:"model_loaded" example:"false"`
}

// OffloadResponse is returned by POST /api/gpu/offload.
type OffloadResponse struct {
	// example: offloaded
	Status string `json:"status" example:"offloaded"`
	// Whether a resident model was actually dropped.
	// example: true
	Evicted bool `json:"evicted" example:"true"`
}

// GPUStatusResponse is returned by GET /api/gpu/status.
type GPUStatusResponse struct {
	// example: true
	ModelLoaded bool    `json:"model_loaded" example:"true"`
	Memory      *Memory `json:"memory,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Lifecycle state: unloaded, loading, ready or evicting.
	// example: ready
	State string `json:"state" example:"ready"`
	// example: true
	Loaded bool `json:"loaded" example:"true"`
	// Load time of the resident model (unix seconds, 0 when unloaded).
	// example: 1700000000
	LoadedAt int64 `json:"loaded_at_unix" example:"1700000000"`
	// Last acquisition or release (unix seconds).
	// example: 1700000100
	LastUsed int64 `json:"last_used_unix" example:"1700000100"`
	// Idle eviction threshold in seconds (0 = disabled).
	// example: 300
	IdleTimeoutSeconds int64 `json:"idle_timeout_seconds" example:"300"`
	// example: 44100
	SampleRate int `json:"sample_rate,omitempty" example:"44100"`
	// example: 3
	LoadsTotal uint64 `json:"loads_total" example:"3"`
	// example: 2
	EvictionsTotal uint64 `json:"evictions_total" example:"2"`
	// Last load error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64   `json:"server_time_unix" example:"1700000000"`
	Memory         *Memory `json:"memory,omitempty"`
}

// DeleteVoiceResponse is returned by DELETE /v1/voices/{id}.
type DeleteVoiceResponse struct {
	// example: true
	Success bool `json:"success" example:"true"`
	// example: voice "3f2a9c6d8e1b4a7f9c0d2e4b6a8c1f3e" deleted
	Message string `json:"message"`
}
