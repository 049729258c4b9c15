package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperjump/divetag/internal/cli"
	"github.com/hyperjump/divetag/internal/sidecar"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Print the capture time, GPS and sidecar contents of media files",
		Args:  cobra.MinimumNArgs(1),
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
			chain := newChain(cfg, logger)
			list := make([]*cli.Inspection, 0, len(args))
			for _, arg := range args {
				path, err := filepath.Abs(arg)
				if err != nil {
					return err
				}
				if _, err := os.Stat(path); err != nil {
					return err
				}
				in := &cli.Inspection{
					Path:        path,
					Metadata:    chain.Read(cmd.Context(), path),
					SidecarPath: sidecar.PathFor(path),
				}
				doc, err := sidecar.Load(in.SidecarPath)
				switch {
				case err == nil:
					in.Sidecar = cli.NewSidecarView(doc)
				case !errors.Is(err, os.ErrNotExist):
					in.SidecarErr = err.Error()
				}
				list = append(list, in)
			}
			return cli.WriteInspections(cmd.OutOrStdout(), list, outFormat)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}
