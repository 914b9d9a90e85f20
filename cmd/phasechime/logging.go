package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/btouchard/phasechime/internal/config"
)

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogging installs the default logger. Logs go to stderr, and to
// cfg.Log.File as well when set. The returned closer releases the file.
func setupLogging(cfg config.LogConfig, stderr io.Writer) func() {
	level := parseLevel(cfg.Level)

	handlers := []slog.Handler{
		slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}),
	}

	closer := func() {}
	if cfg.File != "" {
		_ = os.MkdirAll(filepath.Dir(cfg.File), 0750)
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640) //nolint:gosec // path from config
		if err != nil {
			slog.Warn("failed to open log file, using stderr only", "path", cfg.File, "error", err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
			closer = func() { _ = f.Close() }
		}
	}

	slog.SetDefault(slog.New(slog.NewMultiHandler(handlers...)))
	return closer
}
