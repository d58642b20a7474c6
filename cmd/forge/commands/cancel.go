package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <package>@<version>",
		Short: "Abort a running build",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.app.Cancel(args[0])
		},
	}
}
