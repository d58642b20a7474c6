package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *CLI) newCheckpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "Manage build-state checkpoints",
	}
	cmd.AddCommand(c.newCheckpointsListCmd())
	cmd.AddCommand(c.newCheckpointsCreateCmd())
	cmd.AddCommand(c.newCheckpointsRestoreCmd())
	cmd.AddCommand(c.newCheckpointsPruneCmd())
	return cmd
}

func (c *CLI) newCheckpointsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [package]",
		Short: "List checkpoints, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg := ""
			if len(args) == 1 {
				pkg = args[0]
			}
			metas, err := c.app.CheckpointList(pkg)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPACKAGE\tCREATED\tCHECKSUM")
			for _, m := range metas {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Package, m.CreatedAt.Format("2006-01-02 15:04:05"), m.Checksum)
			}
			return w.Flush()
		},
	}
}

func (c *CLI) newCheckpointsCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <package>@<version>",
		Short: "Snapshot a version's current build directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := c.app.CheckpointCreate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), meta.ID)
			return nil
		},
	}
}

func (c *CLI) newCheckpointsRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <checkpoint-id> <package>@<version>",
		Short: "Roll a version's build directory back to a checkpoint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := c.app.CheckpointRestore(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s from %s\n", args[1], meta.ID)
			return nil
		},
	}
}

func (c *CLI) newCheckpointsPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove checkpoints per the retention policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := c.app.CheckpointPrune(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d checkpoints\n", n)
			return nil
		},
	}
}
