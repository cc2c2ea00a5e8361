package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"voxd/internal/manager"
	"voxd/internal/synth"
	"voxd/internal/voice"
	"voxd/pkg/types"
)

// Stable error kinds carried in every error body.
const (
	KindInvalidRequest       = "invalid_request"
	KindUnsupportedMediaType = "unsupported_media_type"
	KindVoiceNotFound        = "voice_not_found"
	KindNotFound             = "not_found"
	KindForbidden            = "forbidden"
	KindModelLoadFailure     = "model_load_failure"
	KindGenerationFailure    = "generation_failure"
	KindUnavailable          = "unavailable"
	KindInternal             = "internal"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// requestError is a validation failure detected by the HTTP layer itself.
type requestError struct{ msg string }

func (e requestError) Error() string   { return e.msg }
func (e requestError) StatusCode() int { return http.StatusBadRequest }

func badRequest(msg string) error { return requestError{msg: msg} }

// classify maps an error to its status code and kind.
func classify(err error) (int, string) {
	var re requestError
	switch {
	case errors.As(err, &re), errors.Is(err, synth.ErrInvalidParams), voice.IsInvalidInput(err):
		return http.StatusBadRequest, KindInvalidRequest
	case voice.IsVoiceNotFound(err):
		return http.StatusBadRequest, KindVoiceNotFound
	case voice.IsForbidden(err):
		return http.StatusForbidden, KindForbidden
	case voice.IsNotFound(err):
		return http.StatusNotFound, KindNotFound
	case errors.Is(err, manager.ErrClosed):
		return http.StatusServiceUnavailable, KindUnavailable
	case manager.IsModelLoadFailure(err):
		return http.StatusServiceUnavailable, KindModelLoadFailure
	case manager.IsGenerationFailure(err):
		return http.StatusInternalServerError, KindGenerationFailure
	}
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode(), KindInternal
	}
	return http.StatusInternalServerError, KindInternal
}

// writeError writes err with its mapped status and kind.
func writeError(w http.ResponseWriter, err error) int {
	status, kind := classify(err)
	writeJSONError(w, status, kind, err.Error())
	return status
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		reqlessLogger().Debug().Err(err).Msg("encode response")
	}
}
