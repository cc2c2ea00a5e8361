package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"voxd/internal/voice"
)

func newVoicesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "Manage voices without a running server",
	}
	cmd.AddCommand(newVoicesListCmd(c), newVoicesCreateCmd(c), newVoicesDeleteCmd(c))
	return cmd
}

func newVoicesListCmd(c *cli) *cobra.Command {
	var customOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List preset and custom voices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildVoices(c.cfg, c.log)
			if err != nil {
				return err
			}
			var ids []voice.Identity
			if customOnly {
				ids, err = a.voices.ListCustom()
				if err != nil {
					return err
				}
			} else {
				ids = a.voices.List()
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tNAME\tAUDIO")
			for _, v := range ids {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, v.Kind, v.DisplayName, v.ReferenceAudioPath)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&customOnly, "custom", false, "Only list custom voices")
	return cmd
}

func newVoicesCreateCmd(c *cli) *cobra.Command {
	var name, text string
	cmd := &cobra.Command{
		Use:   "create AUDIO_FILE",
		Short: "Register reference audio as a custom voice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			a, err := buildVoices(c.cfg, c.log)
			if err != nil {
				return err
			}
			id, err := a.voices.Create(cmd.Context(), data, filepath.Base(args[0]), name, text)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&text, "text", "", "Transcript of the audio; transcribed when empty and a transcription endpoint is configured")
	return cmd
}

func newVoicesDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a custom voice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildVoices(c.cfg, c.log)
			if err != nil {
				return err
			}
			return a.voices.Delete(args[0])
		},
	}
}
