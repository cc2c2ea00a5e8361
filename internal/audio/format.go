// Package audio holds the signal-level pieces of the synthesis path: output
// formats, chunk conditioning, PCM16 and WAV framing, and the external
// encoder used for compressed containers.
package audio

import (
	"fmt"
	"strings"
)

// Format is a response audio format.
type Format string

const (
	MP3  Format = "mp3"
	Opus Format = "opus"
	AAC  Format = "aac"
	FLAC Format = "flac"
	WAV  Format = "wav"
	PCM  Format = "pcm"
)

// DefaultFormat is used when a request names no format.
const DefaultFormat = MP3

// Formats lists every supported format.
var Formats = []Format{MP3, Opus, AAC, FLAC, WAV, PCM}

// ParseFormat validates s. An empty string yields DefaultFormat.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultFormat, nil
	}
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported response_format %q", s)
}

// MediaType is the Content-Type for f.
func (f Format) MediaType() string {
	switch f {
	case MP3:
		return "audio/mpeg"
	case Opus:
		return "audio/opus"
	case AAC:
		return "audio/aac"
	case FLAC:
		return "audio/flac"
	case WAV:
		return "audio/wav"
	case PCM:
		return "audio/pcm"
	}
	return "application/octet-stream"
}

// Streaming reports whether f can be written chunk by chunk as the model
// produces audio. Container formats need the whole signal first.
func (f Format) Streaming() bool { return f == PCM }

// NeedsEncoder reports whether f is produced by the external encoder.
func (f Format) NeedsEncoder() bool {
	switch f {
	case MP3, Opus, AAC, FLAC:
		return true
	}
	return false
}
