package store

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDeterministic(t *testing.T) {
	data := bytes.Repeat([]byte("voxd"), 5000) // spans several blocks
	k1 := HashBytes(data)
	k2, err := HashReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1.String(), 32)

	p := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, os.WriteFile(p, data, 0o644))
	k3, err := HashFile(p)
	require.NoError(t, err)
	assert.Equal(t, k1, k3)
}

func TestHashDiffersOnSingleByte(t *testing.T) {
	a := bytes.Repeat([]byte{0x01}, 8192)
	b := append([]byte(nil), a...)
	b[len(b)-1] = 0x02
	assert.NotEqual(t, HashBytes(a), HashBytes(b))
}

func TestHashFileMissing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "nope.wav"))
	require.Error(t, err)
}

func TestKeyShort(t *testing.T) {
	k := HashBytes([]byte("x"))
	assert.Equal(t, string(k)[:12], k.Short(12))
	assert.Equal(t, string(k), k.Short(0))
	assert.Equal(t, string(k), k.Short(100))
}

func TestGetMissingReportsAbsence(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	b, ok, err := s.Get(NamespaceTranscriptions, HashBytes([]byte("a")))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, b)
}

func TestPutGetCreatesNamespace(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)
	k := HashBytes([]byte("audio"))

	require.NoError(t, s.Put(NamespaceTranscriptions, k, []byte("hello world")))
	assert.DirExists(t, filepath.Join(root, NamespaceTranscriptions))
	assert.FileExists(t, filepath.Join(root, NamespaceTranscriptions, k.String()+".txt"))

	b, ok, err := s.Get(NamespaceTranscriptions, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello world", string(b))
}

func TestJSONRoundTripAndDelete(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	k := HashBytes([]byte("meta"))
	type meta struct {
		SampleRate int     `json:"sample_rate"`
		Duration   float64 `json:"duration"`
	}
	require.NoError(t, s.PutJSON(NamespaceAudioMeta, k, meta{SampleRate: 44100, Duration: 1.5}))

	var got meta
	ok, err := s.GetJSON(NamespaceAudioMeta, k, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 44100, got.SampleRate)

	require.NoError(t, s.Delete(NamespaceAudioMeta, k))
	require.NoError(t, s.Delete(NamespaceAudioMeta, k), "delete is idempotent")
	ok, err = s.GetJSON(NamespaceAudioMeta, k, &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentPutSameKey(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	payload := []byte(strings.Repeat("same", 1000))
	k := HashBytes(payload)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Put(NamespaceTranscriptions, k, payload))
		}()
	}
	wg.Wait()
	b, ok, err := s.Get(NamespaceTranscriptions, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, b)
}

func TestRejectsPathTraversal(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.Error(t, s.Put("../etc", "k", []byte("x")))
	require.Error(t, s.Put(NamespaceAudioMeta, "a/b", []byte("x")))
	_, _, err = s.Get(NamespaceAudioMeta, "..")
	require.Error(t, err)
}

func TestNewRejectsEmptyRoot(t *testing.T) {
	_, err := New("  ")
	require.Error(t, err)
}
