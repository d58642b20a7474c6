package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <manifest.yaml>",
		Short: "Register package versions from a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Register(cmd.Context(), args[0])
		},
	}
}
