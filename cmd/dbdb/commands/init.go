package commands

import (
	"fmt"

	"dbdb/pkg/app"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize an empty object store",
		Long:  `Create the objects/ directory and an empty index under the workdir.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			workdir := viper.GetString("store.workdir")
			if err := app.Init(workdir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty dbdb store in %s\n", workdir)
			return nil
		},
	}
}
