package commands

import (
	"io"
	"log/slog"
	"strings"
)

// LevelTrace is below Debug and adds per-event traffic.
const LevelTrace = slog.LevelDebug - 4

// parseLevel maps "trace", "debug", "info", "warn" or "error"
// (case-insensitive) to a slog.Level. Unknown values default to info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger returns a JSON logger writing to w at level.
func newLogger(level slog.Level, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
