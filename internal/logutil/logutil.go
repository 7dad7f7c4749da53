// Package logutil wires zap (the teacher's logging library) with optional
// lumberjack-backed file rotation, mirroring matrixone's pkg/logutil
// package: every component takes a *zap.Logger via a functional option
// and falls back to a sane default rather than reaching for a package
// global.
package logutil

import (
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the default logger. A zero Config produces a
// human-readable logger writing to stderr with no rotation.
type Config struct {
	Level      zapcore.Level
	FilePath   string // if set, logs rotate through lumberjack instead of stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Adjust returns l unchanged if non-nil, otherwise builds a default
// logger from cfg. This mirrors the teacher's logutil.Adjust helper used
// throughout pkg/common/morpc.
func Adjust(l *zap.Logger, cfg Config) *zap.Logger {
	if l != nil {
		return l
	}
	return New(cfg)
}

// New builds a zap logger from cfg.
func New(cfg Config) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	var sink zapcore.WriteSyncer
	if cfg.FilePath != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		})
	} else {
		sink = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(encoder, sink, cfg.Level)
	return zap.New(core)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
