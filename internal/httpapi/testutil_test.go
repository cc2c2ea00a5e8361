package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"voxd/internal/audio"
	"voxd/internal/manager"
	"voxd/internal/pipeline"
	"voxd/internal/synth/synthtest"
	"voxd/internal/voice"
)

// fakeEncoder returns a recognizable payload instead of running ffmpeg.
type fakeEncoder struct{ fail bool }

func (e fakeEncoder) Encode(_ context.Context, _ []byte, f audio.Format) ([]byte, error) {
	if e.fail {
		return nil, errors.New("ffmpeg: exit status 1")
	}
	return []byte("ENCODED:" + string(f)), nil
}

func (e fakeEncoder) Normalize(_ context.Context, in []byte, rate int) ([]byte, error) {
	return audio.EncodeWAV(make([]float32, len(in)), rate), nil
}

type fixture struct {
	h      http.Handler
	mgr    *manager.Manager
	model  *synthtest.Model
	voices *voice.Resolver
	dir    string
}

func newFixture(t *testing.T, model *synthtest.Model, enc audio.Encoder) fixture {
	t.Helper()
	dir := t.TempDir()
	ref := filepath.Join(dir, "example.wav")
	if err := os.WriteFile(ref, audio.EncodeWAV([]float32{0, 0.1}, 44100), 0o644); err != nil {
		t.Fatalf("write ref: %v", err)
	}
	voices, err := voice.New(voice.Config{
		VoicesDir:         filepath.Join(dir, "voices"),
		DefaultAudioPath:  ref,
		DefaultTranscript: "example",
		Encoder:           enc,
		Logger:            zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("voices: %v", err)
	}
	mgr := manager.NewWithConfig(manager.ManagerConfig{Loader: synthtest.StaticLoader(model).Load, Logger: zerolog.Nop()})
	p := pipeline.New(pipeline.Config{Models: mgr, Voices: voices, Encoder: enc, Logger: zerolog.Nop()})
	h := NewMux(Deps{Models: mgr, Voices: voices, Synth: p, UploadDir: filepath.Join(dir, "uploads")})
	return fixture{h: h, mgr: mgr, model: model, voices: voices, dir: dir}
}

func (f fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, req)
	return w
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
