package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, MP3, f)

	f, err = ParseFormat(" FLAC ")
	require.NoError(t, err)
	assert.Equal(t, FLAC, f)

	_, err = ParseFormat("ogg")
	assert.Error(t, err)
}

func TestFormatProperties(t *testing.T) {
	assert.Equal(t, "audio/mpeg", MP3.MediaType())
	assert.Equal(t, "audio/wav", WAV.MediaType())
	assert.Equal(t, "audio/pcm", PCM.MediaType())
	assert.True(t, PCM.Streaming())
	for _, f := range []Format{MP3, Opus, AAC, FLAC, WAV} {
		assert.False(t, f.Streaming(), f)
	}
	assert.False(t, WAV.NeedsEncoder())
	assert.False(t, PCM.NeedsEncoder())
	assert.True(t, Opus.NeedsEncoder())
}
