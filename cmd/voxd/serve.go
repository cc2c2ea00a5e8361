package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"voxd/internal/config"
	"voxd/internal/httpapi"
	"voxd/internal/mcpserver"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd(c *cli) *cobra.Command {
	var (
		addr        string
		idle        time.Duration
		sidecarURL  string
		voicesDir   string
		outputDir   string
		corsOrigins string
		noMCP       bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (OpenAI-compatible speech, voices, GPU control, MCP)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("idle-timeout") {
				cfg.IdleTimeout = &config.Duration{Duration: idle}
			}
			if flags.Changed("sidecar-url") {
				cfg.Sidecar.URL = sidecarURL
			}
			if flags.Changed("voices-dir") {
				cfg.VoicesDir = voicesDir
			}
			if flags.Changed("output-dir") {
				cfg.OutputDir = outputDir
			}
			if flags.Changed("cors-origins") {
				cfg.CORS.Enabled = true
				cfg.CORS.Origins = splitCSV(corsOrigins)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, c.log, !noMCP)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8000")
	f.DurationVar(&idle, "idle-timeout", 0, "Evict the model after this long unused (0 keeps it resident)")
	f.StringVar(&sidecarURL, "sidecar-url", "", "Attach to a running model worker instead of spawning one")
	f.StringVar(&voicesDir, "voices-dir", "", "Directory for custom voices")
	f.StringVar(&outputDir, "output-dir", "", "Directory for files written by MCP tools")
	f.StringVar(&corsOrigins, "cors-origins", "", "Enable CORS for these comma-separated origins")
	f.BoolVar(&noMCP, "no-mcp", false, "Do not mount the MCP endpoint at /mcp")
	return cmd
}

// serve runs the HTTP server until ctx is cancelled, then drains requests,
// cancels remaining generations and releases the model.
func serve(ctx context.Context, cfg config.Config, log zerolog.Logger, withMCP bool) error {
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	a, err := buildApp(base, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	a.logSanity()

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(base)
	httpapi.SetWriteTimeout(cfg.StreamWriteTimeout.Duration)
	httpapi.SetMaxUploadBytes(int64(cfg.MaxUploadMB) << 20)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)

	deps := httpapi.Deps{
		Models:    a.mgr,
		Voices:    a.voices,
		Synth:     a.pipeline,
		UploadDir: filepath.Join(cfg.CacheDir, "uploads"),
	}
	if withMCP {
		ms, err := mcpserver.New(mcpserver.Config{
			Models:    a.mgr,
			Synth:     a.pipeline,
			OutputDir: cfg.OutputDir,
			Version:   version,
			Logger:    log,
		})
		if err != nil {
			return err
		}
		deps.MCP = ms.Handler()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go a.mgr.Run(base)

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		log.Info().
			Str("addr", cfg.Addr).
			Str("model", cfg.ModelRepo).
			Dur("idle_timeout", cfg.Idle()).
			Bool("mcp", withMCP).
			Msg("voxd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			cancelBase()
			_ = a.mgr.Close(context.Background())
			return err
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown incomplete")
	}
	cancelBase()
	if err := a.mgr.Close(sctx); err != nil {
		log.Warn().Err(err).Msg("model release incomplete")
	}
	return nil
}
