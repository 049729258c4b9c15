package main

import (
	"github.com/spf13/cobra"

	"github.com/hyperjump/divetag/internal/cli"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var runID, format string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, or the items of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			store, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if runID != "" {
				items, err := store.ItemsForRun(cmd.Context(), runID)
				if err != nil {
					return err
				}
				return cli.WriteItems(out, runID, items, outFormat)
			}
			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return cli.WriteRuns(out, runs, outFormat)
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Show the items of this run")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}
