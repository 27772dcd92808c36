/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/imzleep/abibuilder-sub000/config"
	"github.com/imzleep/abibuilder-sub000/internal/logging"
	"github.com/imzleep/abibuilder-sub000/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var shutdownTimeout time.Duration

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the abibuilder API server",
	Long: `Starts the abibuilder API server. Usage:

	abibuilder server
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		logger, err := logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		ctx := cmd.Context()
		srv, err := server.New(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to start server", zap.Error(err))
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			if err != nil {
				logger.Error("server error", zap.Error(err))
			}
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
			return err
		}
		return <-errCh
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "Time allowed for in-flight requests on shutdown")
}
