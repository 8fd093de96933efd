package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sifan077/HashURL/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

var (
	mu     sync.RWMutex
	global *zap.Logger
)

// Init builds a zap logger from cfg and installs it as the global logger.
func Init(cfg config.LogConfig) (*zap.Logger, error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()

	if global != nil {
		_ = global.Sync()
	}

	global = l
	return global, nil
}

// Sync flushes any buffered log entries on the global logger.
func Sync() error {
	mu.RLock()
	l := global
	mu.RUnlock()

	if l == nil {
		return nil
	}

	// Syncing a terminal fails on most platforms; that is not worth reporting.
	if err := l.Sync(); err != nil && !errors.Is(err, syscall.ENOTTY) && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, os.ErrInvalid) {
		return err
	}
	return nil
}

// New returns a zap.Logger configured according to cfg. Development mode
// defaults to the console encoding, production to JSON.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Encoding {
	case "":
	case "console", "json":
		zapCfg.Encoding = cfg.Encoding
	default:
		return nil, fmt.Errorf("logger: unsupported encoding %q", cfg.Encoding)
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig = encoderConfig(zapCfg.Encoding, shouldColorize())

	return zapCfg.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// ParseLevel maps a textual level to zap's; "" means info.
func ParseLevel(text string) (zapcore.Level, error) {
	level := zapcore.InfoLevel
	if text == "" {
		return level, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(text)))); err != nil {
		return level, fmt.Errorf("logger: invalid level %q: %w", text, err)
	}
	return level, nil
}

func encoderConfig(encoding string, colorize bool) zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
	}

	if encoding == "console" {
		cfg.ConsoleSeparator = " | "
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime + ".000")
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		if colorize {
			cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}

	return cfg
}

func shouldColorize() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
