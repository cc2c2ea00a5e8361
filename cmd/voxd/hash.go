package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voxd/internal/store"
)

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash FILE...",
		Short: "Print the content key voxd derives for each file",
		Args:  cobra.MinimumNArgs(1),
		// Needs no config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range args {
				k, err := store.HashFile(p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", k, p)
			}
			return nil
		},
	}
}
