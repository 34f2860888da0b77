package logger

import (
	"fmt"
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ModeDev  = "dev"
	ModeProd = "prod"
)

type Config struct {
	Level string `yaml:"level"`
	// Filename enables JSON file output rotated by size. Empty logs to
	// stderr only.
	Filename   string `yaml:"filename"`
	MaxSize    int    `yaml:"max_size"`
	MaxAge     int    `yaml:"max_age"`
	MaxBackups int    `yaml:"max_backups"`
}

func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSize:    10,
		MaxAge:     7,
		MaxBackups: 3,
	}
}

// Init builds the process logger and installs it as the zap global so
// components can fall back to zap.L().
func Init(cfg *Config, mode string) (*zap.Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
	}

	var cores []zapcore.Core

	if cfg.Filename != "" {
		cores = append(cores, zapcore.NewCore(jsonEncoder(), fileWriter(cfg), level))
	}

	if mode == ModeDev || cfg.Filename == "" {
		cores = append(cores, zapcore.NewCore(consoleEncoder(), zapcore.Lock(os.Stderr), level))
	}

	lg := zap.New(zapcore.NewTee(cores...), zap.AddCaller())

	zap.ReplaceGlobals(lg)

	lg.Debug("logger initialized", zap.String("level", level.String()), zap.String("mode", mode))

	return lg, nil
}

func jsonEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	return zapcore.NewJSONEncoder(encoderConfig)
}

func consoleEncoder() zapcore.Encoder {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	return zapcore.NewConsoleEncoder(encoderConfig)
}

func fileWriter(cfg *Config) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		LocalTime:  true,
	})
}
