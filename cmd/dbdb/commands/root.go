package commands

import (
	"fmt"

	"dbdb/pkg/app"
	"dbdb/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DB 是全局应用实例，供子命令使用
var DB *app.App

// Execute 是入口
func Execute() error {
	defer closeApp()
	return NewRootCmd().Execute()
}

func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "dbdb",
		Short:         "dbdb: content-addressable block store",
		SilenceUsage:  true,
		SilenceErrors: true,
		// PersistentPreRunE 会在所有子命令执行前运行
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			used, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			// init 只需要配置，不需要完整的 App
			if cmd.Name() == "init" {
				return nil
			}

			DB, err = app.NewApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize dbdb: %w", err)
			}
			if used != "" {
				DB.Log.Debug("using config file", zap.String("path", used))
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if DB == nil {
				return nil
			}
			return DB.WriteMetrics(viper.GetString("metrics.file"))
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or $HOME/.dbdb/config.yaml)")
	flags.String("workdir", "", "directory holding objects/ and index")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("metrics-file", "", "write prometheus metrics to this file on exit")

	// 命令行参数覆盖配置文件和环境变量
	mustBind("store.workdir", flags.Lookup("workdir"))
	mustBind("log.level", flags.Lookup("log-level"))
	mustBind("metrics.file", flags.Lookup("metrics-file"))

	rootCmd.AddCommand(
		newInitCmd(),
		newHashObjectCmd(),
		newCatBlockCmd(),
		newAddCmd(),
		newCatCmd(),
		newLsCmd(),
		newVerifyCmd(),
		newShowCmd(),
	)
	return rootCmd
}

func closeApp() {
	if DB != nil {
		_ = DB.Close()
		DB = nil
	}
}
