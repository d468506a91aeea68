package config

import (
	"strings"

	"github.com/cockroachdb/errors"

	"greenpath/internal/logging"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Format     string          `yaml:"format"`     // json, console
	File       string          `yaml:"file"`       // empty = stderr
	DebugMode  bool            `yaml:"debug_mode"` // Master toggle - false = no logging
	Categories map[string]bool `yaml:"categories"` // Per-category toggles
}

// Options converts the section into logging.Options.
func (c LoggingConfig) Options() logging.Options {
	return logging.Options{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		DebugMode:  c.DebugMode,
		Categories: c.Categories,
	}
}

func parseLevelName(level string) (string, error) {
	switch l := strings.ToLower(level); l {
	case "", "debug", "info", "warn", "warning", "error":
		return l, nil
	default:
		return "", errors.Newf("invalid logging.level: %s", level)
	}
}
