package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/shoalkv/shoal/pkg/metrics"
)

// InitLogging configures the default slog logger from cfg.LogHandlerType/cfg.LogLevel. Call it once at startup,
// after Load.
func InitLogging(cfg Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		metrics.Raise("config", "unsupported_log_level", "got an unsupported log level", "logLevel", cfg.LogLevel)
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.LogHandlerType) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	case "json", "":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		metrics.Raise("config", "unsupported_log_handler", "got an unsupported log handler type",
			"handlerType", cfg.LogHandlerType)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
