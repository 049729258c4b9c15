package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/divetag/internal/cli"
	"github.com/hyperjump/divetag/internal/matcher"
	"github.com/hyperjump/divetag/internal/metadata"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var diveLog, at, format string
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Show which dives a capture time would match",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger(false)
			defer logger.Sync()

			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			captured, err := metadata.ParseTimestamp(at)
			if err != nil {
				return fmt.Errorf("invalid --time %q: %w", at, err)
			}
			index, err := loadIndex(diveLog, logger)
			if err != nil {
				return err
			}

			m := matcher.New(index, policyFor(cfg))
			ranked := m.Rank(captured)
			resolved, err := matcher.NewDisambiguator(matcher.SkipDecider,
				matcher.WithLogger(logger), matcher.WithPolicy(m.Policy())).
				Resolve(cmd.Context(), "", ranked)
			if err != nil {
				return err
			}
			return cli.WriteMatch(cmd.OutOrStdout(), cli.NewMatchView(captured, ranked, resolved), outFormat)
		},
	}
	cmd.Flags().StringVarP(&diveLog, "subsurface-file", "s", "", "Path to the Subsurface dive log (.ssrf)")
	cmd.Flags().StringVarP(&at, "time", "t", "", `Capture time, e.g. "2024-01-15 09:20:00"`)
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("subsurface-file")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}
