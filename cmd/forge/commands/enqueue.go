package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newEnqueueCmd() *cobra.Command {
	var priority int
	cmd := &cobra.Command{
		Use:   "enqueue <package>@<version>",
		Short: "Queue a registered version for building",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Enqueue(cmd.Context(), args[0], priority)
		},
	}
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Queue priority (0-99, highest first)")
	return cmd
}
