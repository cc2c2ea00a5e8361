package types

// Voice describes a voice the server can synthesize with.
type Voice struct {
	// Stable identifier. Custom voices use the MD5 of their reference audio.
	// example: 3f2a9c6d8e1b4a7f9c0d2e4b6a8c1f3e
	ID string `json:"id" example:"3f2a9c6d8e1b4a7f9c0d2e4b6a8c1f3e"`
	// Human-friendly name.
	// example: Narrator
	Name string `json:"name" example:"Narrator"`
	// Either "preset" or "custom".
	// example: custom
	Kind string `json:"kind" example:"custom"`
	// Transcript of the reference audio, if known.
	// example: The quick brown fox jumps over the lazy dog.
	Transcript string `json:"transcript,omitempty" example:"The quick brown fox jumps over the lazy dog."`
	// Creation time (unix seconds). Zero for presets.
	// example: 1700000000
	CreatedAt int64 `json:"created_at,omitempty" example:"1700000000"`
}

// ModelInfo is an entry of GET /v1/models.
type ModelInfo struct {
	// example: tts-1
	ID string `json:"id" example:"tts-1"`
	// example: model
	Object string `json:"object" example:"model"`
	// example: voxd
	OwnedBy string `json:"owned_by" example:"voxd"`
}

// Memory reports accelerator usage passed through from the model runtime.
type Memory struct {
	// example: NVIDIA GeForce RTX 4090
	Device string `json:"device_name,omitempty" example:"NVIDIA GeForce RTX 4090"`
	// example: 3221225472
	AllocatedBytes int64 `json:"allocated_bytes" example:"3221225472"`
	// example: 4294967296
	ReservedBytes int64 `json:"reserved_bytes" example:"4294967296"`
}
