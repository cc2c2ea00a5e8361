package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"voxd/internal/config"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string

	cfg config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "voxd",
		Short:         "Speech synthesis server with on-demand model residency",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("VOXD_CONFIG"), "Config file (.yaml, .json or .toml; defaults to VOXD_CONFIG)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config and VOXD_LOG_LEVEL)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve(c.configPath, os.Getenv)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if c.logLevel != "" {
			cfg.LogLevel = c.logLevel
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		c.cfg = cfg
		c.log = newLogger(os.Stderr, cfg.LogLevel)
		return nil
	}

	root.AddCommand(
		newServeCmd(c),
		newMCPCmd(c),
		newVoicesCmd(c),
		newHashCmd(),
	)
	return root
}
