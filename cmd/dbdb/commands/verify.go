package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify ROOT|NAME",
		Short: "Check that every node and block under ROOT is present and intact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := DB.Engine.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range report.Problems {
				fmt.Fprintln(out, p)
			}
			if !report.OK() {
				return fmt.Errorf("verify %s: %d problem(s)", report.Root, len(report.Problems))
			}
			fmt.Fprintf(out, "ok %s (%d nodes, %d blocks)\n", report.Root, report.Nodes, report.Blocks)
			return nil
		},
	}
}
