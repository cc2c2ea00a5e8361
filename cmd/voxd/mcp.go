package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"voxd/internal/mcpserver"
)

func newMCPCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdin/stdout",
		Long: "Serve text_to_speech, voice_cloning, get_gpu_status and offload_model\n" +
			"to a single MCP client over stdio. Logs go to stderr.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			base, cancelBase := context.WithCancel(context.Background())
			defer cancelBase()
			// No /metrics endpoint in this mode; collectors go to a private registry.
			a, err := buildApp(base, c.cfg, c.log, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			a.logSanity()
			ms, err := mcpserver.New(mcpserver.Config{
				Models:    a.mgr,
				Synth:     a.pipeline,
				OutputDir: c.cfg.OutputDir,
				Version:   version,
				Logger:    c.log,
			})
			if err != nil {
				return err
			}
			go a.mgr.Run(base)

			runErr := ms.RunStdio(ctx)
			cancelBase()
			if err := a.mgr.Close(context.Background()); err != nil {
				c.log.Warn().Err(err).Msg("model release incomplete")
			}
			if ctx.Err() != nil {
				return nil
			}
			return runErr
		},
	}
}
