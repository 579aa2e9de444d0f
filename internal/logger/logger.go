package logger

import (
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"
)

// Configure installs the process-wide slog handler. The dev env gets
// colored human output, anything else gets JSON.
func Configure(w io.Writer, levelStr string, env string) {
	level := parseLogLevel(levelStr)
	var handler slog.Handler

	if isDev(env) {
		handler = tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: "15:04:05"})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func isDev(env string) bool {
	env = strings.ToLower(env)
	return env == "dev" || env == "development"
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
