// Package logger provides structured logging for the spider workers.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Interface defines the logger interface shared by all components.
type Interface interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	Fatal(msg string, fields ...any)
	With(fields ...any) Interface
}

// Config holds logger configuration.
type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `mapstructure:"level"`
	// Encoding is "console" or "json". Defaults to console.
	Encoding string `mapstructure:"encoding"`
	// Development enables human-friendly output with colored levels.
	Development bool `mapstructure:"development"`
}

// Logger implements Interface on top of zap's sugared logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

var logLevels = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// New creates a logger from config.
func New(cfg Config) (Interface, error) {
	level, ok := logLevels[strings.ToLower(cfg.Level)]
	if !ok {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if cfg.Encoding != "" {
		zapCfg.Encoding = cfg.Encoding
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stdout"}

	zl, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &Logger{sugar: zl.Sugar()}, nil
}

// Debug logs a debug message with key/value pairs.
func (l *Logger) Debug(msg string, fields ...any) { l.sugar.Debugw(msg, fields...) }

// Info logs an info message with key/value pairs.
func (l *Logger) Info(msg string, fields ...any) { l.sugar.Infow(msg, fields...) }

// Warn logs a warning message with key/value pairs.
func (l *Logger) Warn(msg string, fields ...any) { l.sugar.Warnw(msg, fields...) }

// Error logs an error message with key/value pairs.
func (l *Logger) Error(msg string, fields ...any) { l.sugar.Errorw(msg, fields...) }

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(msg string, fields ...any) { l.sugar.Fatalw(msg, fields...) }

// With returns a logger with the given key/value pairs attached.
func (l *Logger) With(fields ...any) Interface {
	return &Logger{sugar: l.sugar.With(fields...)}
}
