// Package logger contains the default [domain.Logger] implementation.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/vinicius-lino-figueiredo/docengine/domain"
)

const prefix = "[docengine] "

// DefaultLogger implements [domain.Logger] on top of [slog].
type DefaultLogger struct {
	logger *slog.Logger
}

// NewLogger returns a logger writing text records of at least level to w.
func NewLogger(w io.Writer, level slog.Level) domain.Logger {
	return &DefaultLogger{
		logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})),
	}
}

// NewDefaultLogger returns a logger writing to stderr.
func NewDefaultLogger(level slog.Level) domain.Logger {
	return NewLogger(os.Stderr, level)
}

// NewDiscardLogger returns a logger that drops every record.
func NewDiscardLogger() domain.Logger {
	return NewLogger(io.Discard, slog.LevelError+1)
}

// Debug implements [domain.Logger].
func (d *DefaultLogger) Debug(msg string, args ...any) {
	d.logger.Debug(prefix+msg, args...)
}

// Info implements [domain.Logger].
func (d *DefaultLogger) Info(msg string, args ...any) {
	d.logger.Info(prefix+msg, args...)
}

// Warn implements [domain.Logger].
func (d *DefaultLogger) Warn(msg string, args ...any) {
	d.logger.Warn(prefix+msg, args...)
}

// Error implements [domain.Logger].
func (d *DefaultLogger) Error(msg string, args ...any) {
	d.logger.Error(prefix+msg, args...)
}
