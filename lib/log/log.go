// Package log holds the process logger used by the gateway packages.
package log

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process wide sugared logger. It is usable before InitLogger is called.
var Logger *zap.SugaredLogger //nolint:gochecknoglobals // process logger

// level is shared by every core built by InitLogger so SetLevel takes effect at runtime.
var level = zap.NewAtomicLevelAt(zapcore.InfoLevel) //nolint:gochecknoglobals // see Logger

// ErrBadLevel is returned for unknown log level names.
var ErrBadLevel = errors.New("unknown log level")

func init() {
	Logger = newLogger()
}

// InitLogger sets the lowest level to log (debug, info, warn, error) and rebuilds the logger.
func InitLogger(lvl string) error {
	if err := SetLevel(lvl); err != nil {
		return err
	}

	Logger = newLogger()

	return nil
}

// SetLevel changes the level of the running logger.
func SetLevel(lvl string) error {
	l, err := ParseLevel(lvl)
	if err != nil {
		return err
	}

	level.SetLevel(l)

	return nil
}

// Level returns the current logging level.
func Level() zapcore.Level {
	return level.Level()
}

// ParseLevel maps a level name to a zap level. An empty name means info.
func ParseLevel(lvl string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug", "trace":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}

	return zapcore.InfoLevel, errors.Wrapf(ErrBadLevel, "%q", lvl)
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = Logger.Sync()
}

func newLogger() *zap.SugaredLogger {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		CallerKey:      "C",
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	})
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level)

	return zap.New(core, zap.AddCaller()).Sugar()
}
