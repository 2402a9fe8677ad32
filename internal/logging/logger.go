// Package logging configures log/slog for the HAL: per-module loggers with
// runtime-adjustable levels, written to stdout and to the systemd journal when it is reachable.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mutex       sync.RWMutex
	config      Config
	initialized bool
	output      io.Writer = os.Stdout
	loggers               = make(map[string]*slog.Logger)
	levels                = make(map[string]*slog.LevelVar)
	globalLevel           = &slog.LevelVar{}
)

// Initialize applies config to the default logger and to every module logger created so far.
func Initialize(cfg Config) {
	mutex.Lock()
	defer mutex.Unlock()

	config = cfg
	initialized = true

	globalLevel.Set(parseLevel(cfg.Level, slog.LevelInfo))

	for module, lv := range levels {
		lv.Set(moduleLevel(module))
		loggers[module] = slog.New(newHandler(cfg.Format, lv)).With("module", module)
	}

	slog.SetDefault(slog.New(newHandler(cfg.Format, globalLevel)))
}

// SetLevel changes the level of one module at runtime. An empty module changes the global level.
func SetLevel(module, level string) {
	mutex.Lock()
	defer mutex.Unlock()

	if module == "" {
		globalLevel.Set(parseLevel(level, globalLevel.Level()))

		return
	}

	if config.Modules == nil {
		config.Modules = make(map[string]string)
	}
	config.Modules[module] = level

	if lv, ok := levels[module]; ok {
		lv.Set(parseLevel(level, lv.Level()))
	}
}

// GetLogger returns the logger for a module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	logger, ok := loggers[module]
	mutex.RUnlock()

	if ok {
		return logger
	}

	mutex.Lock()
	defer mutex.Unlock()

	if logger, ok := loggers[module]; ok {
		return logger
	}

	lv := &slog.LevelVar{}
	lv.Set(moduleLevel(module))

	format := "text"
	if initialized {
		format = config.Format
	}

	logger = slog.New(newHandler(format, lv)).With("module", module)
	loggers[module] = logger
	levels[module] = lv

	return logger
}

// moduleLevel must be called with mutex held.
func moduleLevel(module string) slog.Level {
	if !initialized {
		return slog.LevelInfo
	}

	level := parseLevel(config.Level, slog.LevelInfo)
	if s, ok := config.Modules[module]; ok {
		level = parseLevel(s, level)
	}

	return level
}

func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(output, opts)
	} else {
		stdout = slog.NewTextHandler(output, opts)
	}

	if !JournalAvailable() {
		return stdout
	}

	return NewMultiHandler(stdout, NewJournalHandler("alsahal", level))
}

func parseLevel(s string, fallback slog.Level) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
