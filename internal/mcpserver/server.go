// Package mcpserver exposes synthesis and model control as MCP tools, over
// stdio for local agents or mounted on the HTTP server.
package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"voxd/internal/common/fsutil"
	"voxd/internal/pipeline"
	"voxd/pkg/types"
)

// Models is the lifecycle surface the tools use.
type Models interface {
	IsLoaded() bool
	ForceEvict(ctx context.Context) (bool, error)
	Memory(ctx context.Context) (*types.Memory, bool)
}

// Synthesizer produces WAV audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req pipeline.Request) (pipeline.Output, error)
}

// Config wires a Server.
type Config struct {
	Models Models
	Synth  Synthesizer
	// OutputDir receives generated files and anchors relative output paths.
	OutputDir string
	Version   string
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Server owns the MCP server and its tools.
type Server struct {
	models    Models
	synth     Synthesizer
	outputDir string
	log       zerolog.Logger
	now       func() time.Time
	srv       *mcp.Server
}

// New builds the server and registers every tool.
func New(cfg Config) (*Server, error) {
	dir, err := fsutil.ExpandHome(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, fmt.Errorf("mcpserver: output dir is required")
	}
	s := &Server{
		models:    cfg.Models,
		synth:     cfg.Synth,
		outputDir: dir,
		log:       cfg.Logger.With().Str("component", "mcp").Logger(),
		now:       cfg.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	s.srv = mcp.NewServer(&mcp.Implementation{Name: "voxd", Version: version}, nil)
	s.register()
	return s, nil
}

// MCP returns the underlying server, for custom transports.
func (s *Server) MCP() *mcp.Server { return s.srv }

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.srv }, nil)
}

// RunStdio serves a single client over stdin/stdout until ctx ends or the
// client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.srv.Run(ctx, &mcp.StdioTransport{})
}

// outputPath resolves the destination of a generated file. Relative paths
// are anchored in the output dir; an empty path gets a fresh name.
func (s *Server) outputPath(requested, prefix string) (string, error) {
	p, err := fsutil.ExpandHome(requested)
	if err != nil {
		return "", err
	}
	if p == "" {
		p = fmt.Sprintf("%s_%d_%s.wav", prefix, s.now().Unix(), uuid.NewString()[:8])
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.outputDir, p)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return p, nil
}
