// Package logging configures the process-wide slog default that the
// component loggers derive from.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Config holds logger configuration.
type Config struct {
	Level      slog.Level
	JSONFormat bool // human-readable text in development, JSON in production
	AddSource  bool
	Output     io.Writer // defaults to stdout
}

// Setup installs the default slog logger used by every component.
func Setup(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// DebugConfig returns a configuration for local debugging.
func DebugConfig() Config {
	return Config{
		Level:      slog.LevelDebug,
		JSONFormat: false,
		AddSource:  true,
	}
}

// ProductionConfig returns a configuration for deployed services.
func ProductionConfig() Config {
	return Config{
		Level:      slog.LevelInfo,
		JSONFormat: true,
		AddSource:  false,
	}
}
