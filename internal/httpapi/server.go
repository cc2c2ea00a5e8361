package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voxd/internal/pipeline"
	"voxd/internal/voice"
	"voxd/pkg/types"
)

// Models is the lifecycle surface the API exposes.
type Models interface {
	IsLoaded() bool
	Ready() bool
	ForceEvict(ctx context.Context) (bool, error)
	Status(ctx context.Context) types.StatusResponse
	Memory(ctx context.Context) (*types.Memory, bool)
}

// Voices manages the voice registry.
type Voices interface {
	List() []voice.Identity
	ListCustom() ([]voice.Identity, error)
	Get(id string) (voice.Identity, error)
	Create(ctx context.Context, data []byte, filename, name, transcript string) (voice.Identity, error)
	Delete(id string) error
}

// Synthesizer runs synthesis requests.
type Synthesizer interface {
	Run(ctx context.Context, req pipeline.Request, sink pipeline.Sink) (pipeline.Result, error)
	Synthesize(ctx context.Context, req pipeline.Request) (pipeline.Output, error)
}

// Deps are the services behind the API.
type Deps struct {
	Models Models
	Voices Voices
	Synth  Synthesizer
	// MCP, when set, is mounted at /mcp.
	MCP http.Handler
	// UploadDir holds ad-hoc reference audio for /api/tts while a request
	// runs. Defaults to the system temp dir.
	UploadDir string
}

type server struct {
	Deps
}

func NewMux(deps Deps) http.Handler {
	s := &server{Deps: deps}
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{headerVoiceFallback, headerAudioFallback, "X-Request-Id"},
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/audio/speech", s.speech)
		r.Get("/audio/speech/stream", s.speechStream)
		r.Get("/models", s.listModels)
		r.Get("/voices", s.listVoices)
		r.Get("/voices/custom", s.listCustomVoices)
		r.Post("/voices/create", s.createVoice)
		r.Get("/voices/{id}", s.getVoice)
		r.Delete("/voices/{id}", s.deleteVoice)
	})

	r.Post("/api/tts", s.formTTS)
	r.Post("/api/gpu/offload", s.offload)
	r.Get("/api/gpu/status", s.gpuStatus)

	r.Get("/health", s.health)
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Models.Status(r.Context()))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.Models.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("shutting down"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	if s.MCP != nil {
		r.Handle("/mcp", s.MCP)
		r.Handle("/mcp/*", s.MCP)
	}
	MountSwagger(r)
	return r
}
