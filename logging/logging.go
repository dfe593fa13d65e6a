// Package logging adapts zap to the key-value Logger interfaces accepted by
// the accelerator, channel and register packages.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field names shared by every component.
const (
	FieldSessionID = "session_id"
	FieldStage     = "stage"
	FieldCommand   = "command"
	FieldBytes     = "bytes"
	FieldError     = "error"
)

// Logger is a leveled key-value logger whose level can change at runtime.
type Logger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// New builds a console logger at the given level. Entries go to stderr with
// coloured levels and to every extra output path, such as a log file, as
// plain text.
func New(level string, outputs ...string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	atom := zap.NewAtomicLevelAt(lvl)

	stderr, _, err := zap.Open("stderr")
	if err != nil {
		return nil, fmt.Errorf("open stderr: %w", err)
	}

	console := zap.NewDevelopmentEncoderConfig()
	console.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(console), stderr, atom),
	}

	if len(outputs) > 0 {
		files, _, err := zap.Open(outputs...)
		if err != nil {
			return nil, fmt.Errorf("open log output: %w", err)
		}
		plain := zap.NewDevelopmentEncoderConfig()
		plain.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(plain), files, atom))
	}

	base := zap.New(zapcore.NewTee(cores...), zap.ErrorOutput(stderr))
	return Wrap(base, atom), nil
}

// Wrap adapts an existing zap logger whose core is gated by level.
func Wrap(base *zap.Logger, level zap.AtomicLevel) *Logger {
	return &Logger{
		base:  base,
		sugar: base.Sugar(),
		level: level,
	}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return Wrap(zap.NewNop(), zap.NewAtomicLevel())
}

// ParseLevel accepts debug, info, warn (or warning) and error.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// With returns a child logger that adds keysAndValues to every entry.
// The child shares the parent's level.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	sugar := l.sugar.With(keysAndValues...)
	return &Logger{base: sugar.Desugar(), sugar: sugar, level: l.level}
}

// SetLevel changes the level of this logger and all its children.
func (l *Logger) SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(lvl)
	return nil
}

// SetDebug toggles between debug and info level.
func (l *Logger) SetDebug(on bool) {
	if on {
		l.level.SetLevel(zapcore.DebugLevel)
		return
	}
	l.level.SetLevel(zapcore.InfoLevel)
}

// Level returns the current level name.
func (l *Logger) Level() string {
	return l.level.Level().String()
}

// Zap returns the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}
