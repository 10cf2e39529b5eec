package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/metadata"
)

type contextKey string

const (
	// RequestIDKey is the key used to store request IDs in context
	RequestIDKey contextKey = "request_id"

	// RequestIDHeader carries the request ID on HTTP requests and responses
	RequestIDHeader = "X-Request-Id"
)

// Config defines logging configuration
type Config struct {
	// Level is the logging level (debug, info, warn, error)
	Level string
	// Pretty determines if logs should be formatted for human readability
	Pretty bool
	// Output is where logs are written (defaults to os.Stdout)
	Output io.Writer
	// Service is attached to every record when set
	Service string
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Pretty: false,
		Output: os.Stdout,
	}
}

// Setup configures global logging based on the provided config and returns
// the resulting logger.
func Setup(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	logCtx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		logCtx = logCtx.Str("service", cfg.Service)
	}
	log.Logger = logCtx.Logger()
	return log.Logger
}

// WithRequestID stores a request ID in ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID returns the request ID stored in ctx, if any
func RequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RequestIDKey).(string)
	return id, ok && id != ""
}

// FromContext extracts a logger with request context
func FromContext(ctx context.Context) zerolog.Logger {
	if requestID, ok := RequestID(ctx); ok {
		return log.With().Str("request_id", requestID).Logger()
	}

	// gRPC metadata on admin calls
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		logCtx := log.With()
		for k, v := range md {
			if len(v) > 0 {
				logCtx = logCtx.Str(k, v[0])
			}
		}
		return logCtx.Logger()
	}

	return log.Logger
}
