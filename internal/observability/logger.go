package observability

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	sugar *zap.SugaredLogger
}

type LoggerOptions struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Path enables a rotated JSON log file in addition to stderr.
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

func NewLogger(opts LoggerOptions) (*Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stderr), level),
	}

	if opts.Path != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(rotator), level))
	}

	return &Logger{sugar: zap.New(zapcore.NewTee(cores...)).Sugar()}, nil
}

// Wrap adapts an existing zap logger, e.g. one from zaptest.
func Wrap(l *zap.Logger) *Logger {
	return &Logger{sugar: l.Sugar()}
}

func NewNop() *Logger {
	return Wrap(zap.NewNop())
}

// With returns a child logger that adds the given key/value pairs to every entry.
func (l *Logger) With(fields ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(fields...)}
}

func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.sugar.Debugw(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	l.sugar.Infow(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.sugar.Warnw(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...interface{}) {
	l.sugar.Errorw(msg, fields...)
}

func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
