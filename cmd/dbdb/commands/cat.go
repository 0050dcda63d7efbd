package commands

import (
	"bufio"

	"github.com/spf13/cobra"
)

func newCatBlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat-block HASH...",
		Short: "Print the raw content of blocks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Join 在最后一块之后 Flush
			return DB.Engine.CatBlocks(cmd.Context(), args, bufio.NewWriter(cmd.OutOrStdout()))
		},
	}
}

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat ROOT|NAME",
		Short: "Reconstruct a file from its root hash",
		Long:  `Walk the tree under ROOT (a full hash, a unique prefix, or a name recorded by add) and write the file content to stdout.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return DB.Engine.Cat(cmd.Context(), args[0], bufio.NewWriter(cmd.OutOrStdout()))
		},
	}
}
