// Package common holds logging and metrics shared by the cosmiqlink tools.
package common

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig controls the rotating file sink. An empty Directory disables file
// logging entirely; the console core always runs.
type LogConfig struct {
	Directory  string `yaml:"directory"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
	Debug      bool   `yaml:"debug"`
}

// NewLogger builds the process logger: a console core on stderr teed with a
// size-rotated file core when a log directory is configured.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)
	if cfg.Directory == "" {
		return zap.New(consoleCore), nil
	}

	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, err
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, "cosmiqctl.log"),
		MaxSize:    orDefault(cfg.MaxSizeMB, 20),
		MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		MaxBackups: orDefault(cfg.MaxBackups, 5),
		Compress:   cfg.Compress,
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(rotator),
		zapcore.DebugLevel,
	)
	return zap.New(zapcore.NewTee(consoleCore, fileCore)), nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
