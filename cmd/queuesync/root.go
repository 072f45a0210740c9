package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/queuesync/internal/config"
	"github.com/vovakirdan/queuesync/internal/log"
)

type rootOptions struct {
	configPath string
	logLevel   string
	serverURL  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "queuesync",
		Short:         "Live mirror of collaborative music queues",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yaml")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.serverURL, "server", "", "session server base URL")

	cmd.AddCommand(
		newWatchCmd(opts),
		newIdentityCmd(opts),
		newSnapshotCmd(opts),
	)
	return cmd
}

// load resolves configuration: defaults < config file < env vars < flags.
func (o *rootOptions) load() (*config.Config, *zerolog.Logger, error) {
	bootstrap := log.New(o.logLevel, "console")

	cfg, path, err := config.Load(bootstrap, o.configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.UpdateFrom(config.Config{LogLevel: o.logLevel, ServerURL: o.serverURL})
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("path", path).Str("server", cfg.ServerURL).Msg("config loaded")
	return &cfg, logger, nil
}
