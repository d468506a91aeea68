// Package logging provides config-driven categorized logging for greenpath.
// Every subsystem asks for a named zap logger by category. Nothing is written
// unless debug_mode is on, so the TUI never has log lines bleeding into it.
package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, config loading
	CategorySession  Category = "session"  // Token, auth user, current project
	CategoryAPI      Category = "api"      // Backend HTTP calls
	CategoryWorkflow Category = "workflow" // Recommendation iteration controller
	CategoryStore    Category = "store"    // SQLite persistence
	CategoryUI       Category = "ui"       // bubbletea screens
	CategoryReport   Category = "report"   // Report artifact downloads
)

// Categories lists every known category.
var Categories = []Category{
	CategoryBoot,
	CategorySession,
	CategoryAPI,
	CategoryWorkflow,
	CategoryStore,
	CategoryUI,
	CategoryReport,
}

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string
	Format     string // "json" or "console"
	File       string // empty means stderr
	DebugMode  bool
	Categories map[string]bool
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	opts    Options
	loggers = make(map[Category]*zap.Logger)
)

// Initialize builds the root logger. With DebugMode off every category gets
// a no-op logger.
func Initialize(o Options) error {
	level, err := parseLevel(o.Level)
	if err != nil {
		return err
	}

	next := zap.NewNop()
	if o.DebugMode {
		next, err = build(o, level)
		if err != nil {
			return err
		}
	}

	mu.Lock()
	defer mu.Unlock()
	_ = root.Sync()
	root = next
	opts = o
	loggers = make(map[Category]*zap.Logger)

	if o.DebugMode {
		root.Named(string(CategoryBoot)).Info("logging initialized",
			zap.String("level", level.String()),
			zap.String("format", formatOf(o)),
			zap.String("file", o.File))
	}
	return nil
}

func build(o Options, level zapcore.Level) (*zap.Logger, error) {
	var cfg zap.Config
	if formatOf(o) == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	out := "stderr"
	if o.File != "" {
		if err := os.MkdirAll(filepath.Dir(o.File), 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create log directory")
		}
		out = o.File
	}
	cfg.OutputPaths = []string{out}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	return logger, nil
}

func formatOf(o Options) string {
	if strings.EqualFold(o.Format, "console") {
		return "console"
	}
	return "json"
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	name := strings.ToLower(s)
	if name == "warning" {
		name = "warn"
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel, errors.Wrapf(err, "invalid log level %q", s)
	}
	return level, nil
}

// IsDebugMode returns whether logging is enabled at all.
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabled(category)
}

func categoryEnabled(category Category) bool {
	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns the logger for the given category.
// Returns a no-op logger if debug mode or the category is disabled.
func Get(category Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := zap.NewNop()
	if categoryEnabled(category) {
		l = root.Named(string(category))
	}
	loggers[category] = l
	return l
}

// Sync flushes the root logger.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

// Timer logs the duration of an operation when stopped.
type Timer struct {
	category  Category
	operation string
	start     time.Time
}

// StartTimer starts timing operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, operation: operation, start: time.Now()}
}

// Stop logs the elapsed time at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("operation finished",
		zap.String("operation", t.operation),
		zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithThreshold logs at warn level when the operation ran past threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed < threshold {
		return t.Stop()
	}
	Get(t.category).Warn("slow operation",
		zap.String("operation", t.operation),
		zap.Duration("elapsed", elapsed),
		zap.Duration("threshold", threshold))
	return elapsed
}
