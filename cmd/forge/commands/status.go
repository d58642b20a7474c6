package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *CLI) newStatusCmd() *cobra.Command {
	var history bool
	cmd := &cobra.Command{
		Use:   "status [package]",
		Short: "Show package versions and the build queue",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg := ""
			if len(args) == 1 {
				pkg = args[0]
			}

			report, err := c.app.Status(cmd.Context(), pkg)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PACKAGE\tVERSION\tSTATUS")
			for _, pv := range report.Versions {
				fmt.Fprintf(w, "%s\t%s\t%s\n", pv.Package, pv.Version, pv.Status)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if len(report.Queue) > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
				qw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(qw, "QUEUED\tPRIORITY\tSTATUS")
				for _, e := range report.Queue {
					fmt.Fprintf(qw, "%s@%s\t%d\t%s\n", e.Package, e.Version, e.Priority, e.Status)
				}
				if err := qw.Flush(); err != nil {
					return err
				}
			}

			if history && pkg != "" {
				for _, pv := range report.Versions {
					trs, err := c.app.History(cmd.Context(), pv.Ref())
					if err != nil {
						return err
					}
					for _, tr := range trs {
						fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s -> %s %s\n",
							tr.At.Format("2006-01-02 15:04:05"), pv.Ref(), tr.From, tr.To, tr.Note)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "Show the status transition history")
	return cmd
}
