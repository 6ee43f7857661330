package settings

import (
	"context"
	"log/slog"
	"time"
)

// Log operations reported through Logger.
const (
	OpGet          = "get"
	OpSave         = "save"
	OpReset        = "reset"
	OpDefaultsSync = "defaults.sync"
	OpEvaluate     = "evaluate"
)

// LogEvent describes one provider operation for logging.
type LogEvent struct {
	Op            string
	Type          string
	RepositoryKey string
	Duration      time.Duration
	Keys          int
	Err           error
}

// Logger records provider events.
type Logger interface {
	LogEvent(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogEvent implements Logger.
func (f LoggerFunc) LogEvent(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogEvent(LogEvent) {}

// WithLogger attaches a logger to the provider. A nil logger silences output.
func WithLogger(logger Logger) Option {
	return func(cfg *providerConfig) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// NewSlogLogger adapts a slog.Logger. Failed operations log at error level,
// the rest at debug.
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return slogLogger{logger: logger}
}

type slogLogger struct {
	logger *slog.Logger
}

func (l slogLogger) LogEvent(event LogEvent) {
	attrs := []slog.Attr{
		slog.String("op", event.Op),
		slog.String("type", event.Type),
		slog.String("repository", event.RepositoryKey),
		slog.Duration("duration", event.Duration),
	}
	if event.Keys > 0 {
		attrs = append(attrs, slog.Int("keys", event.Keys))
	}
	level := slog.LevelDebug
	if event.Err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	}
	l.logger.LogAttrs(context.Background(), level, "settings "+event.Op, attrs...)
}
