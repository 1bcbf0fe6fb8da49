// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package logging provides the structured logging interface used
// throughout the engine, adapted from the teacher's logging package.
// The teacher's Logger interface is a thin alias over an internal
// logrus-backed implementation; here logrus is wired in directly since
// this module has no multi-version (v0/v1) API surface to bridge.
package logging

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Level is a log severity.
type Level int

const (
	Error Level = iota
	Warn
	Info
	Debug
)

// Fields are structured key/value pairs attached to a log record.
type Fields map[string]interface{}

// Logger is the interface engine components log through. Components
// take a Logger rather than reaching for a package-level global, so
// tests can inject a NoOpLogger or a recording logger.
type Logger interface {
	Debug(fmt string, a ...interface{})
	Info(fmt string, a ...interface{})
	Warn(fmt string, a ...interface{})
	Error(fmt string, a ...interface{})
	WithFields(fields Fields) Logger
	GetLevel() Level
	SetLevel(Level)
}

// StandardLogger is the default Logger, backed by logrus.
type StandardLogger struct {
	entry *logrus.Entry
}

// New returns a StandardLogger backed by a new logrus logger instance
// at Info level.
func New() *StandardLogger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return &StandardLogger{entry: logrus.NewEntry(l)}
}

func (l *StandardLogger) Debug(format string, a ...interface{}) { l.entry.Debugf(format, a...) }
func (l *StandardLogger) Info(format string, a ...interface{})  { l.entry.Infof(format, a...) }
func (l *StandardLogger) Warn(format string, a ...interface{})  { l.entry.Warnf(format, a...) }
func (l *StandardLogger) Error(format string, a ...interface{}) { l.entry.Errorf(format, a...) }

func (l *StandardLogger) WithFields(fields Fields) Logger {
	return &StandardLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *StandardLogger) GetLevel() Level {
	return fromLogrusLevel(l.entry.Logger.GetLevel())
}

func (l *StandardLogger) SetLevel(level Level) {
	l.entry.Logger.SetLevel(toLogrusLevel(level))
}

func toLogrusLevel(level Level) logrus.Level {
	switch level {
	case Error:
		return logrus.ErrorLevel
	case Warn:
		return logrus.WarnLevel
	case Debug:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

func fromLogrusLevel(level logrus.Level) Level {
	switch level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return Error
	case logrus.WarnLevel:
		return Warn
	case logrus.DebugLevel, logrus.TraceLevel:
		return Debug
	default:
		return Info
	}
}

// NoOpLogger discards everything logged through it. Used as the
// default in tests and in components that are not given a Logger.
type NoOpLogger struct{}

func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (*NoOpLogger) Debug(string, ...interface{}) {}
func (*NoOpLogger) Info(string, ...interface{})  {}
func (*NoOpLogger) Warn(string, ...interface{})  {}
func (*NoOpLogger) Error(string, ...interface{}) {}
func (n *NoOpLogger) WithFields(Fields) Logger   { return n }
func (*NoOpLogger) GetLevel() Level              { return Error }
func (*NoOpLogger) SetLevel(Level)               {}

type contextKey struct{}

// NewContext returns a copy of parent carrying logger, retrievable with
// FromContext.
func NewContext(parent context.Context, logger Logger) context.Context {
	return context.WithValue(parent, contextKey{}, logger)
}

// FromContext returns the Logger stored in ctx, or a NoOpLogger if none
// was attached.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextKey{}).(Logger); ok {
		return logger
	}
	return NewNoOpLogger()
}
