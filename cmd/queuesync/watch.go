package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/queuesync/internal/app"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var bridgeAddr string

	cmd := &cobra.Command{
		Use:   "watch <session>...",
		Short: "Join sessions, serve the bridge API and log live events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			if bridgeAddr != "" {
				cfg.BridgeAddr = bridgeAddr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}

			logger.Info().Strs("sessions", args).Str("server", cfg.ServerURL).Msg("starting queuesync")
			if err := application.Run(ctx, args); err != nil {
				return err
			}
			logger.Info().Msg("queuesync stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&bridgeAddr, "bridge-addr", "", "bridge API listen address")
	return cmd
}
