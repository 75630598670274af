// Package logging provides categorized, debug-gated file logging for the
// search core. Each category writes to its own file under the configured
// directory; when debug mode is off the whole package is a silent no-op,
// so hot paths can log freely.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // startup, wiring
	CategoryParser    Category = "parser"    // tiered parse decisions
	CategoryMatcher   Category = "matcher"   // category/location/transaction matching
	CategoryHotCache  Category = "hotcache"  // snapshot refresh lifecycle
	CategoryAttrs     Category = "attrs"     // attribute extraction
	CategoryCache     Category = "cache"     // exact/result caches
	CategorySemCache  Category = "semcache"  // semantic cache hits/stores/eviction
	CategoryEmbedding Category = "embedding" // embedding engine
	CategoryLLM       Category = "llm"       // LLM prompts and hints
	CategoryStore     Category = "store"     // SQL layer
	CategoryRetrieval Category = "retrieval" // retrievers and orchestrator
	CategoryAPI       Category = "api"       // service facade
)

// Log levels.
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger writes category-tagged lines to the category's file.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers    = make(map[Category]*Logger)
	loggersMu  sync.RWMutex
	logsDir    string
	enabled    bool
	categories map[string]bool
	logLevel   = LevelInfo
)

// Options controls initialization.
type Options struct {
	Dir        string
	DebugMode  bool
	Level      string // debug | info | warn | error
	Categories map[string]bool
}

// Initialize prepares the logging directory. With DebugMode false the
// package stays a no-op. Safe to call once at startup.
func Initialize(opts Options) error {
	enabled = opts.DebugMode
	categories = opts.Categories
	logLevel = parseLevel(opts.Level)

	if !enabled {
		return nil
	}

	logsDir = opts.Dir
	if logsDir == "" {
		logsDir = "logs"
	}
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}

	Get(CategoryBoot).Info("logging initialized: dir=%s level=%s", logsDir, opts.Level)
	return nil
}

func parseLevel(s string) int {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Get returns the logger for a category, creating it on first use.
func Get(cat Category) *Logger {
	loggersMu.RLock()
	l, ok := loggers[cat]
	loggersMu.RUnlock()
	if ok {
		return l
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}

	l = &Logger{category: cat}
	if enabled && categoryEnabled(cat) {
		path := filepath.Join(logsDir, string(cat)+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			l.file = f
			l.logger = log.New(f, "", 0)
		}
	}
	loggers[cat] = l
	return l
}

func categoryEnabled(cat Category) bool {
	if len(categories) == 0 {
		return true
	}
	return categories[string(cat)]
}

func (l *Logger) write(level int, tag, format string, args ...any) {
	if l.logger == nil || level < logLevel {
		return
	}
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	l.logger.Printf("%s [%s] [%s] %s", ts, l.category, tag, fmt.Sprintf(format, args...))
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...any) { l.write(LevelDebug, "DEBUG", format, args...) }

// Info logs at info level.
func (l *Logger) Info(format string, args ...any) { l.write(LevelInfo, "INFO", format, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...any) { l.write(LevelWarn, "WARN", format, args...) }

// Error logs at error level.
func (l *Logger) Error(format string, args ...any) { l.write(LevelError, "ERROR", format, args...) }

// Convenience helpers for the busiest categories.

// Parser logs an info line on the parser category.
func Parser(format string, args ...any) { Get(CategoryParser).Info(format, args...) }

// Matcher logs an info line on the matcher category.
func Matcher(format string, args ...any) { Get(CategoryMatcher).Info(format, args...) }

// Retrieval logs an info line on the retrieval category.
func Retrieval(format string, args ...any) { Get(CategoryRetrieval).Info(format, args...) }

// Close flushes and closes all open log files.
func Close() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			_ = l.file.Close()
			l.file = nil
			l.logger = nil
		}
	}
	loggers = make(map[Category]*Logger)
}
