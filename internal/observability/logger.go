package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger creates a logger based on environment
func NewLogger(environment string) *slog.Logger {
	return newLogger(environment, os.Stdout)
}

func newLogger(environment string, w io.Writer) *slog.Logger {
	var handler slog.Handler

	switch environment {
	case "production", "staging":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: true,
		})
	default:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	return slog.New(handler).With(slog.String("env", environment))
}
