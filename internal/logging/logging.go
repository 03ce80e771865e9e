package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	initOnce sync.Once
	logger   *zap.Logger
	level    = zap.NewAtomicLevel()
	exitFunc = os.Exit
)

// L returns the shared application logger, initializing it on first use.
func L() *zap.Logger {
	initOnce.Do(func() {
		logger = newLogger()
	})
	return logger
}

// Named returns a child of the shared logger scoped to a component.
func Named(component string) *zap.Logger {
	return L().Named(component)
}

// SetLevel changes the minimum level of the shared logger at runtime. Empty
// names are ignored so an unset config key keeps the environment's level.
func SetLevel(name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	L()
	level.SetLevel(parseLevel(name))
}

// Sync flushes any buffered log entries
func Sync() error {
	if logger != nil {
		return logger.Sync()
	}
	return nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()

	level.SetLevel(parseLevel(os.Getenv("FUNNEL_LOG_LEVEL")))
	config.Level = level

	format := strings.ToLower(os.Getenv("FUNNEL_LOG_FORMAT"))
	if format == "json" || format == "structured" {
		config.Encoding = "json"
	} else {
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if strings.EqualFold(os.Getenv("FUNNEL_LOG_SOURCE"), "true") {
		config.Development = true
	}

	// stdout stays clean for CLI output (probe results, formatted numbers)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		logger, _ = zap.NewDevelopment()
	}

	return logger
}

func parseLevel(value string) zapcore.Level {
	switch strings.ToLower(value) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Fatal logs the message at error level and exits with status 1.
func Fatal(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
	exitFunc(1)
}
