// Package logger configures the application's structured logger.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger initializes a new slog logger with the given level and format.
// A nil output defaults to stdout.
func NewLogger(level slog.Level, format string, output io.Writer) *slog.Logger {
	if output == nil {
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
