package pipeline

import (
	"context"

	"voxd/internal/audio"
	"voxd/internal/manager"
	"voxd/internal/synth"
	"voxd/internal/voice"
)

// State is a pipeline stage.
type State string

const (
	StateResolving  State = "resolving"
	StateAcquiring  State = "acquiring"
	StateGenerating State = "generating"
	StateEncoding   State = "encoding"
	StateStreaming  State = "streaming"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Models hands out exclusive use of the resident model.
type Models interface {
	Acquire(ctx context.Context) (*manager.Lease, error)
}

// Voices resolves voice ids to reference audio.
type Voices interface {
	Resolve(ctx context.Context, id string) (voice.Resolution, error)
}

// Request is one synthesis job.
type Request struct {
	// ID correlates log lines and spans, usually the HTTP request id.
	ID     string
	Voice  string
	Format audio.Format
	// Params carries the text and generation options. Prompt fields are
	// filled from the resolved voice unless PromptWavPath is already set,
	// in which case voice resolution is skipped.
	Params synth.Params
}

// Header describes the audio about to be written.
type Header struct {
	Format     audio.Format
	MediaType  string
	SampleRate int
	// AudioFallback is set when the encoder failed and WAV is sent instead.
	AudioFallback bool
	// VoiceFallback is set when the requested voice was unknown.
	VoiceFallback bool
}

// Sink receives the encoded stream. Begin is called once, before the first
// Write; nothing is sent to a Sink when a request fails before audio exists.
type Sink interface {
	Begin(h Header) error
	Write(p []byte) error
}

// Result summarizes a finished request.
type Result struct {
	Header  Header
	Voice   voice.Resolution
	Samples int
	Bytes   int
	// Partial is set when the stream was cut short after Begin.
	Partial bool
}

// Output is the result of Synthesize.
type Output struct {
	WAV        []byte
	SampleRate int
	Samples    int
	Voice      voice.Resolution
}
