package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix: DBDB_STORE_WORKDIR 对应 store.workdir
const EnvPrefix = "DBDB"

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
// 返回实际使用的配置文件，没找到配置文件时为空
func Load(cfgFile string) (string, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 搜索顺序: 当前目录 -> ./.dbdb -> ~/.dbdb
		viper.AddConfigPath(".")
		viper.AddConfigPath(".dbdb")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".dbdb"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// 没有配置文件不算错，默认值和环境变量依然生效
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("fatal error config file: %w", err)
	}
	return viper.ConfigFileUsed(), nil
}

func setDefaults() {
	viper.SetDefault("store.workdir", "./data")
	viper.SetDefault("store.block_size", 8192)
	viper.SetDefault("store.hash", "sha1")
	viper.SetDefault("store.codec", "snappy")

	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("s3.region", "us-east-1")
	viper.SetDefault("s3.prefix", "objects/")

	viper.SetDefault("redis.ttl", 24*time.Hour)

	viper.SetDefault("catalog.driver", "none")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")

	viper.SetDefault("cache.nodes", 1024)
	viper.SetDefault("verify.workers", 8)
}
