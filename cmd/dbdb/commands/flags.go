package commands

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// mustBind 绑定失败只可能是 flag 名写错，属于编程错误
func mustBind(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
