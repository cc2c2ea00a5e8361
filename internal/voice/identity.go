// Package voice resolves voice identifiers to reference audio and manages
// the registry of custom voices created from uploads.
package voice

import "time"

// Kind distinguishes shipped voices from uploaded ones.
type Kind string

const (
	KindPreset Kind = "preset"
	KindCustom Kind = "custom"
)

// DefaultID is the built-in voice used when nothing else matches.
const DefaultID = "default"

// OpenAIVoices are accepted for compatibility and map to DefaultID.
var OpenAIVoices = []string{
	"alloy", "echo", "fable", "onyx", "nova", "shimmer",
	"ash", "ballad", "coral", "sage", "verse",
}

// Identity is a resolvable voice.
type Identity struct {
	ID                  string
	Kind                Kind
	DisplayName         string
	ReferenceAudioPath  string
	ReferenceTranscript string
	CreatedAt           time.Time
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Identity Identity
	// Requested is the id the caller asked for.
	Requested string
	// Fallback is set when Requested was unknown and the default was used.
	Fallback bool
}

// AudioMeta is recorded in the audio-meta cache for every custom voice.
type AudioMeta struct {
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
	DurationSeconds float64 `json:"duration_seconds"`
	Bytes           int     `json:"bytes"`
	OriginalBytes   int     `json:"original_bytes"`
	Filename        string  `json:"filename,omitempty"`
}
