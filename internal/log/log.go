package log

import (
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	logger     atomic.Pointer[zap.SugaredLogger]
	loggerOnce sync.Once
	atom       = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// initLogger builds the global logger writing console-encoded lines to stderr.
func initLogger() {
	loggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.Level = atom
		cfg.Sampling = nil
		cfg.DisableStacktrace = true
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

		l, err := cfg.Build(zap.AddCallerSkip(2))
		if err != nil {
			l = zap.NewNop()
		}
		logger.Store(l.Sugar())
	})
}

func SetLevel(l Level) {
	initLogger()
	atom.SetLevel(toZap(l))
}

// ParseLevel maps a config string (case-insensitive) to a Level.
// Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Replace swaps the underlying logger and returns a func restoring the
// previous one. Tests use it with zaptest/observer.
func Replace(l *zap.Logger) (restore func()) {
	initLogger()
	prev := logger.Swap(l.WithOptions(zap.AddCallerSkip(2)).Sugar())
	return func() { logger.Store(prev) }
}

func Sync() {
	initLogger()
	_ = logger.Load().Sync()
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(LevelWarn, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWithLevel(LevelError, msg, extended...)
}

func logWithLevel(level Level, msg string, kv ...any) {
	initLogger()

	// Drop a dangling key so zap does not report it as an ignored field.
	if len(kv)%2 != 0 {
		kv = kv[:len(kv)-1]
	}

	l := logger.Load()
	switch level {
	case LevelDebug:
		l.Debugw(msg, kv...)
	case LevelWarn:
		l.Warnw(msg, kv...)
	case LevelError:
		l.Errorw(msg, kv...)
	default:
		l.Infow(msg, kv...)
	}
}

func toZap(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
