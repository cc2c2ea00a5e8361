package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"voxd/internal/audio"
	"voxd/internal/common/fsutil"
	"voxd/internal/pipeline"
	"voxd/internal/synth"
)

// formParams reads the generation parameters of /api/tts. Absent fields
// keep the synth defaults (retry enabled).
func formParams(r *http.Request) (synth.Params, error) {
	p := synth.DefaultParams(r.FormValue("text"))
	if strings.TrimSpace(p.Text) == "" {
		return p, badRequest("text is required")
	}
	var err error
	floats := map[string]*float64{
		"cfg_value":                     &p.CFGValue,
		"retry_badcase_ratio_threshold": &p.RetryRatioThreshold,
	}
	for k, dst := range floats {
		if v := r.FormValue(k); v != "" {
			if *dst, err = strconv.ParseFloat(v, 64); err != nil {
				return p, badRequest(fmt.Sprintf("%s: not a number", k))
			}
		}
	}
	ints := map[string]*int{
		"inference_timesteps":     &p.InferenceTimesteps,
		"min_len":                 &p.MinLen,
		"max_len":                 &p.MaxLen,
		"retry_badcase_max_times": &p.RetryMaxTimes,
	}
	for k, dst := range ints {
		if v := r.FormValue(k); v != "" {
			if *dst, err = strconv.Atoi(v); err != nil {
				return p, badRequest(fmt.Sprintf("%s: not an integer", k))
			}
		}
	}
	bools := map[string]*bool{
		"normalize":     &p.Normalize,
		"denoise":       &p.Denoise,
		"retry_badcase": &p.RetryBadcase,
	}
	for k, dst := range bools {
		if v := r.FormValue(k); v != "" {
			if *dst, err = strconv.ParseBool(v); err != nil {
				return p, badRequest(fmt.Sprintf("%s: not a boolean", k))
			}
		}
	}
	return p, nil
}

// saveUpload writes an ad-hoc reference clip for the duration of a request.
func (s *server) saveUpload(data []byte, filename string) (string, error) {
	dir := s.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	dir, err := fsutil.ExpandHome(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".wav"
	}
	path := filepath.Join(dir, "prompt_"+uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save prompt audio: %w", err)
	}
	return path, nil
}

// formTTS godoc
// @Summary      Synthesize speech from a form
// @Description  Exposes every generation parameter. An uploaded prompt_audio clip conditions the voice for this request only; otherwise the optional voice field is resolved like /v1/audio/speech. Always returns WAV.
// @Tags         audio
// @Accept       multipart/form-data
// @Produce      audio/wav
// @Param        text                           formData  string  true   "Text to synthesize"
// @Param        prompt_audio                   formData  file    false  "Reference audio"
// @Param        prompt_text                    formData  string  false  "Transcript of prompt_audio"
// @Param        voice                          formData  string  false  "Registered voice id"
// @Param        cfg_value                      formData  number  false  "Guidance scale (default 2.0)"
// @Param        inference_timesteps            formData  int     false  "Timesteps (default 10)"
// @Param        min_len                        formData  int     false  "Default 2"
// @Param        max_len                        formData  int     false  "Default 4096"
// @Param        normalize                      formData  bool    false  "Default false"
// @Param        denoise                        formData  bool    false  "Default false"
// @Param        retry_badcase                  formData  bool    false  "Default true"
// @Param        retry_badcase_max_times        formData  int     false  "Default 3"
// @Param        retry_badcase_ratio_threshold  formData  number  false  "Default 6.0"
// @Success      200  {file}    binary
// @Failure      400  {object}  types.ErrorResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /api/tts [post]
func (s *server) formTTS(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := parseMultipart(w, r); err != nil {
		writeError(w, err)
		return
	}
	params, err := formParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	data, filename, err := formFile(r, "prompt_audio")
	if err != nil {
		writeError(w, err)
		return
	}
	if len(data) > 0 {
		path, err := s.saveUpload(data, filename)
		if err != nil {
			writeError(w, err)
			return
		}
		defer os.Remove(path)
		params.PromptWavPath = path
		params.PromptText = r.FormValue("prompt_text")
	}
	req := pipeline.Request{
		ID:     middleware.GetReqID(r.Context()),
		Voice:  r.FormValue("voice"),
		Format: audio.WAV,
		Params: params,
	}
	logStart(r, map[string]any{"voice": req.Voice, "adhoc": params.PromptWavPath != "", "chars": len(params.Text)})

	out, err := s.Synth.Synthesize(r.Context(), req)
	if out.Voice.Fallback {
		voiceFallbackTotal.Inc()
		w.Header().Set(headerVoiceFallback, "true")
	}
	if err != nil {
		status := writeError(w, err)
		logEnd(r, status, start, err)
		return
	}
	w.Header().Set("Content-Type", audio.WAV.MediaType())
	w.Header().Set("Content-Length", strconv.Itoa(len(out.WAV)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.WAV)
	logEnd(r, http.StatusOK, start, nil)
}
