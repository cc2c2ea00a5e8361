package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"voxd/internal/voice"
	"voxd/pkg/types"
)

func toVoice(id voice.Identity) types.Voice {
	v := types.Voice{
		ID:         id.ID,
		Name:       id.DisplayName,
		Kind:       string(id.Kind),
		Transcript: id.ReferenceTranscript,
	}
	if v.Name == "" {
		v.Name = id.ID
	}
	if id.Kind == voice.KindCustom && !id.CreatedAt.IsZero() {
		v.CreatedAt = id.CreatedAt.Unix()
	}
	return v
}

func toVoices(ids []voice.Identity) types.VoicesResponse {
	resp := types.VoicesResponse{Voices: make([]types.Voice, 0, len(ids))}
	for _, id := range ids {
		resp.Voices = append(resp.Voices, toVoice(id))
	}
	return resp
}

// listVoices godoc
// @Summary      List preset voices
// @Tags         voices
// @Produce      json
// @Success      200  {object}  types.VoicesResponse
// @Router       /v1/voices [get]
func (s *server) listVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toVoices(s.Voices.List()))
}

// listCustomVoices godoc
// @Summary      List custom voices
// @Tags         voices
// @Produce      json
// @Success      200  {object}  types.VoicesResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /v1/voices/custom [get]
func (s *server) listCustomVoices(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Voices.ListCustom()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoices(ids))
}

// getVoice godoc
// @Summary      Get a voice
// @Tags         voices
// @Produce      json
// @Param        id   path      string  true  "Voice id"
// @Success      200  {object}  types.Voice
// @Failure      404  {object}  types.ErrorResponse
// @Router       /v1/voices/{id} [get]
func (s *server) getVoice(w http.ResponseWriter, r *http.Request) {
	id, err := s.Voices.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoice(id))
}

// deleteVoice godoc
// @Summary      Delete a custom voice
// @Tags         voices
// @Produce      json
// @Param        id   path      string  true  "Voice id"
// @Success      200  {object}  types.DeleteVoiceResponse
// @Failure      403  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Router       /v1/voices/{id} [delete]
func (s *server) deleteVoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Voices.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	l := requestLogger(r)
	l.Info().Str("voice", id).Msg("custom voice deleted")
	writeJSON(w, http.StatusOK, types.DeleteVoiceResponse{Success: true, Message: fmt.Sprintf("voice %q deleted", id)})
}

// createVoice godoc
// @Summary      Create a custom voice from reference audio
// @Description  The voice id is the MD5 of the uploaded audio, so uploading the same file twice yields the same voice. A missing transcript is produced by the transcription service when one is configured.
// @Tags         voices
// @Accept       multipart/form-data
// @Produce      json
// @Param        audio  formData  file    true   "Reference audio (wav, mp3, ...)"
// @Param        name   formData  string  true   "Display name"
// @Param        text   formData  string  false  "Transcript of the reference audio"
// @Success      200    {object}  types.CreateVoiceResponse
// @Failure      400    {object}  types.ErrorResponse
// @Router       /v1/voices/create [post]
func (s *server) createVoice(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		writeError(w, err)
		return
	}
	data, filename, err := formFile(r, "audio")
	if err != nil {
		writeError(w, err)
		return
	}
	if data == nil {
		writeError(w, badRequest("audio file is required"))
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		writeError(w, badRequest("name is required"))
		return
	}
	id, err := s.Voices.Create(r.Context(), data, filename, name, r.FormValue("text"))
	if err != nil {
		writeError(w, err)
		return
	}
	l := requestLogger(r)
	l.Info().Str("voice", id.ID).Str("name", id.DisplayName).Msg("custom voice created")
	writeJSON(w, http.StatusOK, types.CreateVoiceResponse{
		Success: true,
		VoiceID: id.ID,
		Name:    id.DisplayName,
		Message: fmt.Sprintf("voice created, use voice=%q with /v1/audio/speech", id.ID),
	})
}

// parseMultipart bounds and parses a multipart body.
func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest(fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
		}
		return badRequest("invalid multipart form: " + err.Error())
	}
	return nil
}

// formFile reads an optional uploaded file. A missing field yields nil data.
func formFile(r *http.Request, field string) ([]byte, string, error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", badRequest(fmt.Sprintf("read %s: %v", field, err))
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", badRequest(fmt.Sprintf("read %s: %v", field, err))
	}
	return data, hdr.Filename, nil
}
