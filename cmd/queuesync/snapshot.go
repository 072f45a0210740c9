package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/queuesync/internal/core"
	"github.com/vovakirdan/queuesync/internal/queueapi"
)

func newSnapshotCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <session>",
		Short: "Fetch and print the current queue of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.load()
			if err != nil {
				return err
			}

			api := queueapi.NewClient(cfg.ServerURL, cfg.SnapshotPath, cfg.SnapshotTimeout)
			entries, err := api.FetchQueue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []core.QueueEntry{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"queue": entries})
		},
	}
}
