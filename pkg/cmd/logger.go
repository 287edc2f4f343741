package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// initLogger configures the process-wide slog default from the CLI flags:
// level, text-vs-JSON handler, and app/version attributes on every record.
func initLogger(flags *cmdFlags) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(flags.LogLevel)); err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if flags.TextFormat {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler).With(
		slog.String("app", flags.appName),
		slog.String("ver", flags.version),
	)

	slog.SetDefault(logger)

	return nil
}
