// Package logging provides categorized logging for lorekit, backed by zap.
// Library use gets a nop logger by default; the CLI enables categories from
// config. A disabled category is a no-op, so the core stays silent unless
// asked otherwise.
package logging

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a logging subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"
	CategoryCard    Category = "card"
	CategoryLore    Category = "lore"
	CategoryCompose Category = "compose"
	CategoryStore   Category = "store"
	CategoryWatch   Category = "watch"
)

// Config controls logger construction.
type Config struct {
	Level      string          `yaml:"level"`      // debug|info|warn|error
	Categories map[string]bool `yaml:"categories"` // nil = all enabled
	Directory  string          `yaml:"directory"`  // empty = stderr
	JSON       bool            `yaml:"json"`
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	enabled map[string]bool
	loggers = make(map[Category]*zap.SugaredLogger)
)

// Init builds the root logger from config. Call once at startup; before Init
// every category logs to a nop logger.
func Init(cfg Config) error {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); cfg.Level != "" && err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if cfg.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	sink := zapcore.AddSync(os.Stderr)
	if cfg.Directory != "" {
		if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(filepath.Join(cfg.Directory, "lorekit.log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		sink = zapcore.AddSync(f)
	}

	mu.Lock()
	defer mu.Unlock()
	root = zap.New(zapcore.NewCore(enc, sink, level))
	enabled = cfg.Categories
	loggers = make(map[Category]*zap.SugaredLogger)
	return nil
}

// L returns the sugared logger for a category. Disabled categories get a nop.
func L(cat Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	var l *zap.SugaredLogger
	if enabled != nil {
		on, listed := enabled[string(cat)]
		if listed && !on {
			l = zap.NewNop().Sugar()
		}
	}
	if l == nil {
		l = root.Named(string(cat)).Sugar()
	}
	loggers[cat] = l
	return l
}

// Sync flushes buffered log entries. Safe to call at shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
