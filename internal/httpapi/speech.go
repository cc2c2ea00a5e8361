package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"

	"voxd/internal/audio"
	"voxd/internal/pipeline"
	"voxd/internal/synth"
	"voxd/pkg/types"
)

const (
	headerVoiceFallback = "X-Voice-Fallback"
	headerAudioFallback = "X-Audio-Fallback"

	maxInputChars = 4096
	defaultModel  = "tts-1"
)

// speechModels maps the OpenAI model names to inference timesteps.
var speechModels = map[string]int{
	"tts-1":           5,
	"tts-1-hd":        10,
	"gpt-4o-mini-tts": 7,
}

// speechModelIDs is the listing order of /v1/models.
var speechModelIDs = []string{"tts-1", "tts-1-hd", "gpt-4o-mini-tts"}

// speechRequest validates body and maps it onto a pipeline request with the
// OpenAI endpoint defaults.
func speechRequest(id string, body types.SpeechRequest) (pipeline.Request, error) {
	var req pipeline.Request
	if strings.TrimSpace(body.Input) == "" {
		return req, badRequest("input is required")
	}
	if utf8.RuneCountInString(body.Input) > maxInputChars {
		return req, badRequest(fmt.Sprintf("input exceeds %d characters", maxInputChars))
	}
	if body.Speed != 0 && (body.Speed < 0.25 || body.Speed > 4.0) {
		return req, badRequest("speed must be between 0.25 and 4.0")
	}
	model := body.Model
	if model == "" {
		model = defaultModel
	}
	steps, ok := speechModels[model]
	if !ok {
		return req, badRequest(fmt.Sprintf("unknown model %q", model))
	}
	format, err := audio.ParseFormat(body.ResponseFormat)
	if err != nil {
		return req, badRequest(err.Error())
	}

	p := synth.DefaultParams(body.Input)
	p.InferenceTimesteps = steps
	p.RetryBadcase = false
	p.Normalize = body.Normalize
	p.Denoise = body.Denoise
	if body.CFGValue != nil {
		p.CFGValue = *body.CFGValue
	}
	if body.InferenceTimesteps != nil {
		p.InferenceTimesteps = *body.InferenceTimesteps
	}
	return pipeline.Request{ID: id, Voice: body.Voice, Format: format, Params: p}, nil
}

// httpSink writes pipeline output to a response, flushing after each write
// so PCM chunks reach the client as they are produced.
type httpSink struct {
	w     http.ResponseWriter
	rc    *http.ResponseController
	begun bool
}

func newHTTPSink(w http.ResponseWriter) *httpSink {
	return &httpSink{w: w, rc: http.NewResponseController(w)}
}

func (s *httpSink) Begin(h pipeline.Header) error {
	s.begun = true
	if err := s.deadline(); err != nil {
		return err
	}
	hdr := s.w.Header()
	hdr.Set("Content-Type", h.MediaType)
	if h.VoiceFallback {
		hdr.Set(headerVoiceFallback, "true")
	}
	if h.AudioFallback {
		hdr.Set(headerAudioFallback, string(h.Format))
	}
	if h.Format == audio.PCM {
		hdr.Set("X-Sample-Rate", fmt.Sprint(h.SampleRate))
	}
	s.w.WriteHeader(http.StatusOK)
	return s.flush()
}

func (s *httpSink) Write(p []byte) error {
	if err := s.deadline(); err != nil {
		return err
	}
	if _, err := s.w.Write(p); err != nil {
		return err
	}
	return s.flush()
}

// deadline bounds the next write so a client that stops reading fails the
// write instead of blocking it.
func (s *httpSink) deadline() error {
	err := s.rc.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// clearDeadline keeps the per-write deadline from leaking into the next
// request on a kept-alive connection.
func (s *httpSink) clearDeadline() {
	_ = s.rc.SetWriteDeadline(time.Time{})
}

func (s *httpSink) flush() error {
	if err := s.rc.Flush(); err != nil && err != http.ErrNotSupported {
		return err
	}
	return nil
}

// speech godoc
// @Summary      Synthesize speech (OpenAI compatible)
// @Description  pcm streams conditioned 16-bit PCM as it is generated; other formats are generated in full and encoded. Encoder failures fall back to WAV with X-Audio-Fallback set.
// @Tags         audio
// @Accept       json
// @Produce      audio/mpeg,audio/opus,audio/aac,audio/flac,audio/wav,audio/pcm
// @Param        request  body      types.SpeechRequest  true  "Speech request"
// @Success      200      {file}    binary
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /v1/audio/speech [post]
func (s *server) speech(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, KindUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var body types.SpeechRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, KindInvalidRequest, "invalid JSON body")
		return
	}
	req, err := speechRequest(middleware.GetReqID(r.Context()), body)
	if err != nil {
		writeError(w, err)
		return
	}
	logStart(r, map[string]any{"voice": req.Voice, "format": string(req.Format), "chars": len(req.Params.Text)})

	sink := newHTTPSink(w)
	res, err := s.Synth.Run(r.Context(), req, sink)
	sink.clearDeadline()
	if res.Voice.Fallback {
		voiceFallbackTotal.Inc()
	}
	if err != nil {
		if sink.begun {
			logEnd(r, http.StatusOK, start, err)
			// Headers are gone; abort the connection so the client sees a
			// truncated body rather than a clean end of stream.
			panic(http.ErrAbortHandler)
		}
		status := writeError(w, err)
		logEnd(r, status, start, err)
		return
	}
	logEnd(r, http.StatusOK, start, nil)
}

// listModels godoc
// @Summary      List synthesis quality profiles
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /v1/models [get]
func (s *server) listModels(w http.ResponseWriter, r *http.Request) {
	resp := types.ModelsResponse{Object: "list", Data: make([]types.ModelInfo, 0, len(speechModelIDs))}
	for _, id := range speechModelIDs {
		resp.Data = append(resp.Data, types.ModelInfo{ID: id, Object: "model", OwnedBy: "voxd"})
	}
	writeJSON(w, http.StatusOK, resp)
}
