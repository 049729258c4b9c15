package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/divetag/internal/matcher"
	"github.com/hyperjump/divetag/internal/server"
	"github.com/hyperjump/divetag/internal/storage"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var diveLog, host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger(false)
			defer logger.Sync()

			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			index, err := loadIndex(diveLog, logger)
			if err != nil {
				return err
			}

			var ledger storage.Ledger
			if store, err := openLedger(cfg); err != nil {
				logger.Warn("ledger unavailable, run endpoints disabled", zap.Error(err))
			} else {
				defer store.Close()
				ledger = store
			}

			srv := server.NewServer(matcher.New(index, policyFor(cfg)), ledger, &cfg.Server, logger)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
			}

			logger.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVarP(&diveLog, "subsurface-file", "s", "", "Path to the Subsurface dive log (.ssrf)")
	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config)")
	_ = cmd.MarkFlagRequired("subsurface-file")
	return cmd
}
