package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newRequeueCmd() *cobra.Command {
	var priority int
	cmd := &cobra.Command{
		Use:   "requeue <package>@<version>",
		Short: "Return a failed or blocked version to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Requeue(cmd.Context(), args[0], priority)
		},
	}
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Queue priority (0-99, highest first)")
	return cmd
}
