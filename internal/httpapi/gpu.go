package httpapi

import (
	"net/http"

	"voxd/pkg/types"
)

// health reports liveness and whether the model is resident. It never
// loads the model.
func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthResponse{Status: "healthy", ModelLoaded: s.Models.IsLoaded()})
}

// offload evicts the model, waiting for an in-flight generation to finish.
func (s *server) offload(w http.ResponseWriter, r *http.Request) {
	evicted, err := s.Models.ForceEvict(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	l := requestLogger(r)
	l.Info().Bool("evicted", evicted).Msg("model offload requested")
	writeJSON(w, http.StatusOK, types.OffloadResponse{Status: "offloaded", Evicted: evicted})
}

func (s *server) gpuStatus(w http.ResponseWriter, r *http.Request) {
	resp := types.GPUStatusResponse{ModelLoaded: s.Models.IsLoaded()}
	if mem, ok := s.Models.Memory(r.Context()); ok {
		resp.Memory = mem
	}
	writeJSON(w, http.StatusOK, resp)
}
