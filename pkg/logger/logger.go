package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 描述日志输出
type Config struct {
	Level  string // debug, info, warn, error
	Format string // console (默认) 或 json
}

// New 根据配置构建 zap.Logger
// 日志写到 stderr，stdout 留给命令输出 (cat 的数据流不能被日志污染)
func New(cfg Config) (*zap.Logger, error) {
	lvl := zap.InfoLevel
	if cfg.Level != "" {
		var err error
		lvl, err = zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(lvl)
	c.OutputPaths = []string{"stderr"}
	c.ErrorOutputPaths = []string{"stderr"}
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch cfg.Format {
	case "", "console":
		c.Encoding = "console"
	case "json":
		c.Encoding = "json"
	default:
		return nil, fmt.Errorf("unsupported log format: %q", cfg.Format)
	}

	return c.Build(zap.AddStacktrace(zap.NewAtomicLevelAt(zap.FatalLevel)))
}
