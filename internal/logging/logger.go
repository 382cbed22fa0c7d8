package logging

import (
	"fmt"
	"reflect"

	"agentcore/internal/observability"
)

// Logger is the printf-style logging contract used across the agent core.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

// IsNil reports whether logger is nil or a typed nil.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	val := reflect.ValueOf(logger)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Func:
		return val.IsNil()
	}
	return false
}

// OrNop returns logger, or Nop when logger is nil.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}

func isNop(logger Logger) bool {
	_, ok := logger.(nopLogger)
	return ok
}

// NewComponentLogger scopes the process-wide structured logger to a component
// such as "runner", "retry" or "history".
func NewComponentLogger(component string) Logger {
	return FromObservabilityWithComponent(observability.DefaultLogger(), component)
}

// FromObservabilityWithComponent adapts a structured logger to the printf
// contract. Messages are formatted before they reach slog.
func FromObservabilityWithComponent(logger *observability.Logger, component string) Logger {
	if logger == nil {
		return Nop()
	}
	if component != "" {
		logger = logger.With("component", component)
	}
	return &structuredLogger{base: logger}
}

type structuredLogger struct {
	base *observability.Logger
}

func (l *structuredLogger) Debug(format string, args ...any) {
	l.base.Debug(fmt.Sprintf(format, args...))
}

func (l *structuredLogger) Info(format string, args ...any) {
	l.base.Info(fmt.Sprintf(format, args...))
}

func (l *structuredLogger) Warn(format string, args ...any) {
	l.base.Warn(fmt.Sprintf(format, args...))
}

func (l *structuredLogger) Error(format string, args ...any) {
	l.base.Error(fmt.Sprintf(format, args...))
}

func (l *structuredLogger) with(key, value string) Logger {
	return &structuredLogger{base: l.base.With(key, value)}
}
