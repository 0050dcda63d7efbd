package commands

import (
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	var abbrev int

	cmd := &cobra.Command{
		Use:   "show ROOT|NAME",
		Short: "Print the tree nodes under ROOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return DB.Engine.PrintTree(cmd.Context(), args[0], cmd.OutOrStdout(), abbrev)
		},
	}
	cmd.Flags().IntVar(&abbrev, "abbrev", 8, "hash digits to show (0 for full hashes)")
	return cmd
}
