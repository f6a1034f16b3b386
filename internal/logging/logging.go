// Package logging sets the process-wide slog default handler from a
// LogConfig, the same text/json-by-level setup every service binary in
// this repo shares.
package logging

import (
	"log/slog"
	"os"

	"github.com/alejandrodnm/momentumcore/internal/config"
)

// Setup installs the default slog handler for cfg and returns it so
// callers can attach service-scoped attributes (e.g. slog.With("service", "buyer")).
func Setup(cfg config.LogConfig, service string) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	return logger
}
