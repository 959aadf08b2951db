// Package logging builds the zap loggers shared by the catalog components.
package logging

import (
	"strings"

	"github.com/goliatone/go-errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger flavour.
type Config struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `yaml:"level"`
	// Format is json or console. Empty means json.
	Format   string `yaml:"format"`
	Disabled bool   `yaml:"disabled"`
}

// New builds a logger from cfg. A disabled config yields a no-op logger.
func New(cfg Config) (*zap.Logger, error) {
	if cfg.Disabled {
		return zap.NewNop(), nil
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "json":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, errors.New("unknown log format "+cfg.Format, errors.CategoryBadInput).
			WithMetadata(map[string]any{"format": cfg.Format})
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "build logger")
	}
	return logger, nil
}

// ParseLevel maps a level name to a zapcore level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zapcore.InfoLevel, errors.New("unknown log level "+s, errors.CategoryBadInput).
			WithMetadata(map[string]any{"level": s})
	}
	return level, nil
}

// Named returns logger.Named(name), or a no-op logger when logger is nil.
func Named(logger *zap.Logger, name string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named(name)
}
