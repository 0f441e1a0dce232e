package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// Service is attached to every log line.
const Service = "release-stats"

// New creates a zerolog.Logger writing JSON to w at the given level.
// Unknown or empty levels fall back to info.
func New(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", Service).Logger()
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID extracts the request ID from context.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// LogRequest logs an HTTP request with standard fields.
func LogRequest(logger zerolog.Logger, ctx context.Context, method, path string, status int, size int64, latency time.Duration) {
	evt := logger.Info()
	if status >= 500 {
		evt = logger.Error()
	}
	evt.
		Str("request_id", RequestID(ctx)).
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Int64("size", size).
		Dur("latency", latency).
		Msg("request")
}
