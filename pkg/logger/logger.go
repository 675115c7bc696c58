package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global logger instance, initialized once at startup.
var (
	globalLogger *zap.Logger
	once         sync.Once
)

// Init initializes the global logger. In production the output is JSON at
// info level; otherwise a human-readable console encoder at debug level.
func Init(environment string) {
	once.Do(func() {
		globalLogger = newLogger(environment)
	})
}

// L returns the global logger, initializing a development logger if Init
// was never called (tests, scripts).
func L() *zap.Logger {
	if globalLogger == nil {
		Init("development")
	}
	return globalLogger
}

// Sync flushes any buffered log entries.
func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { L().Fatal(msg, fields...) }

func newLogger(environment string) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var encoder zapcore.Encoder
	level := zapcore.DebugLevel
	if environment == "production" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
		level = zapcore.InfoLevel
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}
