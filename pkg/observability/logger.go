package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Logger is the service's structured JSON logger.
type Logger struct {
	*slog.Logger
}

// NewLogger writes JSON records tagged with the service name to stdout.
func NewLogger(serviceName, level string) *Logger {
	return NewLoggerTo(os.Stdout, serviceName, level)
}

func NewLoggerTo(w io.Writer, serviceName, level string) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return &Logger{slog.New(handler).With("service", serviceName)}
}

// ParseLevel maps "debug", "warn" and "error" to slog levels. Anything else
// is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// WithContext adds the trace and span ids of the active span, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return &Logger{l.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())}
}
