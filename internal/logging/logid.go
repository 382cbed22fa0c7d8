package logging

import (
	"context"

	"agentcore/internal/utils/id"
)

// attributer is implemented by loggers that can carry key/value attributes.
type attributer interface {
	with(key, value string) Logger
}

// With attaches key=value to every line logged through the result. Structured
// loggers keep it as an attribute; plain loggers get a message prefix.
func With(logger Logger, key, value string) Logger {
	if IsNil(logger) || isNop(logger) {
		return Nop()
	}
	if value == "" {
		return logger
	}
	if attr, ok := logger.(attributer); ok {
		return attr.with(key, value)
	}
	return &prefixLogger{logger: logger, prefix: key + "=" + value + " "}
}

// WithLogID tags a logger with a log id.
func WithLogID(logger Logger, logID string) Logger {
	return With(logger, "log_id", logID)
}

// FromContext tags logger with the log id, run id and node stored in ctx.
func FromContext(ctx context.Context, logger Logger) Logger {
	ids := id.IDsFromContext(ctx)
	logger = WithLogID(logger, ids.LogID)
	logger = With(logger, "run_id", ids.RunID)
	return With(logger, "node", ids.Node)
}

type prefixLogger struct {
	logger Logger
	prefix string
}

func (l *prefixLogger) Debug(format string, args ...any) { l.logger.Debug(l.prefix+format, args...) }
func (l *prefixLogger) Info(format string, args ...any)  { l.logger.Info(l.prefix+format, args...) }
func (l *prefixLogger) Warn(format string, args ...any)  { l.logger.Warn(l.prefix+format, args...) }
func (l *prefixLogger) Error(format string, args ...any) { l.logger.Error(l.prefix+format, args...) }
