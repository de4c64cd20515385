package main

import (
	"github.com/spf13/cobra"
)

func newSeenCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "seen <owner> [message-id]",
		Short: "Check the dedup ledger",
		Long:  "With a message id, reports whether it was ingested. Without one, prints how many messages the owner has.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				n, err := a.ingest.Count(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				cmd.Printf("%s: %d messages\n", args[0], n)
				return nil
			}

			seen, err := a.ingest.Seen(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			cmd.Printf("%s %s: seen=%t\n", args[0], args[1], seen)
			return nil
		},
	}
}
