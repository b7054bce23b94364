// Package obs centralizes BitGrid's logging configuration. Every package
// logs through the *slog.Logger returned by Logger, with a dedicated
// level for per-subcycle trace/waveform detail.
package obs

import (
	"log/slog"
	"os"
	"sync"
)

// LevelTrace is the level set aside for per-subcycle / per-frame detail.
// It sits just above Info, so a handler at the default info level emits
// it, and BITGRID_LOG_LEVEL=trace hides Info records while keeping it. No
// package in this module logs at it; the server's --verbose frame trace
// is printed by its own table writer (server/trace.go).
const LevelTrace slog.Level = slog.LevelInfo + 1

var (
	once   sync.Once
	logger *slog.Logger
)

// Logger returns the process-wide logger. Set BITGRID_LOG_JSON=1 to switch
// from the default text handler to JSON, and BITGRID_LOG_LEVEL to one of
// debug|info|trace|warn|error (default info).
func Logger() *slog.Logger {
	once.Do(func() {
		level := parseLevel(os.Getenv("BITGRID_LOG_LEVEL"))
		opts := &slog.HandlerOptions{Level: level}

		var handler slog.Handler
		if os.Getenv("BITGRID_LOG_JSON") == "1" {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(os.Stderr, opts)
		}
		logger = slog.New(handler)
	})
	return logger
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
