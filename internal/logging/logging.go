// Package logging builds the operator-facing zap logger.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New. File is optional; when set, JSON lines are
// teed to a rotated file.
type Options struct {
	Debug      bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New returns a console logger on stderr, plus a rotated JSON file core
// when opt.File is set.
func New(opt Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opt.Debug {
		level = zapcore.DebugLevel
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level),
	}

	if opt.File != "" {
		if fi, err := os.Stat(opt.File); err == nil && fi.IsDir() {
			return nil, fmt.Errorf("log file %s is a directory", opt.File)
		}
		if opt.MaxSizeMB <= 0 {
			opt.MaxSizeMB = 20
		}
		if opt.MaxBackups <= 0 {
			opt.MaxBackups = 5
		}
		if opt.MaxAgeDays <= 0 {
			opt.MaxAgeDays = 30
		}
		rotator := &lumberjack.Logger{
			Filename:   opt.File,
			MaxSize:    opt.MaxSizeMB,
			MaxBackups: opt.MaxBackups,
			MaxAge:     opt.MaxAgeDays,
			Compress:   opt.Compress,
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.TimeKey = "timestamp"
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(rotator), level))
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

// Must is New that exits on error; used by the CLI entrypoint only.
func Must(opt Options) *zap.Logger {
	l, err := New(opt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	return l
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
