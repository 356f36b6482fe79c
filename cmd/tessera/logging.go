package main

import (
	"log/slog"
	"os"

	"github.com/dlattice/tessera/internal/logger"
)

// buildLogger resolves the --log-level/--log-format flags into a
// concrete logger.Logger, using logger.{Default,JSON,Pretty}'s split
// between interactive and structured output.
func buildLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	switch logFormat {
	case "json":
		return logger.JSON(os.Stderr, level)
	case "text":
		return logger.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	default:
		return logger.Pretty(os.Stderr, level)
	}
}
