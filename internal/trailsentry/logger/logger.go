package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.SugaredLogger

// LogConfig carries the logging options read from config.
type LogConfig struct {
	Level       string
	Development bool
}

// InitLogger initializes the global sugared logger.
func InitLogger(cfg LogConfig) error {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	switch cfg.Level {
	case "debug":
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	z, err := zcfg.Build()
	if err != nil {
		return err
	}

	logger = z.Sugar()
	return nil
}

// L returns the global sugared logger.
// If InitLogger has not been called, it initializes at info level.
func L() *zap.SugaredLogger {
	if logger == nil {
		_ = InitLogger(LogConfig{Level: "info"})
	}
	return logger
}
