package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"agentcore/internal/utils/id"
)

// Logger is the structured slog logger behind every component logger.
type Logger struct {
	logger *slog.Logger
}

// LogConfig selects level (debug, info, warn, error), format (text, json) and
// destination. A nil Output means stderr.
type LogConfig struct {
	Level  string
	Format string
	Output io.Writer
}

var defaultLogger atomic.Pointer[Logger]

// DefaultLogger returns the process-wide logger, falling back to an info-level
// text logger on stderr until SetDefaultLogger is called.
func DefaultLogger() *Logger {
	if logger := defaultLogger.Load(); logger != nil {
		return logger
	}
	defaultLogger.CompareAndSwap(nil, NewLogger(LogConfig{}))
	return defaultLogger.Load()
}

// SetDefaultLogger replaces the process-wide logger. nil is ignored.
func SetDefaultLogger(logger *Logger) {
	if logger != nil {
		defaultLogger.Store(logger)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a logger from config.
func NewLogger(config LogConfig) *Logger {
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseLevel(config.Level)}

	var handler slog.Handler = slog.NewTextHandler(output, opts)
	if strings.EqualFold(config.Format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	}
	return &Logger{logger: slog.New(handler)}
}

// WithContext attaches the run, log and node ids carried by ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	ids := id.IDsFromContext(ctx)
	var attrs []any
	for _, kv := range [][2]string{{"run_id", ids.RunID}, {"log_id", ids.LogID}, {"node", ids.Node}} {
		if kv[1] != "" {
			attrs = append(attrs, kv[0], kv[1])
		}
	}
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// InfoContext logs msg with the ids found on ctx.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Info(msg, args...)
}
