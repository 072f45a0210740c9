package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/queuesync/internal/identity"
)

func newIdentityCmd(root *rootOptions) *cobra.Command {
	var forget bool

	cmd := &cobra.Command{
		Use:   "identity <session>",
		Short: "Print the participant id used in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.load()
			if err != nil {
				return err
			}

			ids, err := identity.New(cfg.IdentityDB)
			if err != nil {
				return err
			}
			defer ids.Close()

			if forget {
				if err := ids.Forget(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			id, err := ids.ParticipantID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&forget, "reset", false, "replace the stored id with a new one")
	return cmd
}
