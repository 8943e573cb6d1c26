package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/homewise/homewise-core/internal/infrastructure/config"
)

// Logger wraps slog.Logger configured from the logging section of
// config.yaml. Every record carries service and version attributes, and
// subsystems derive their own logger with With("component", ...), so a
// single JSON stream can be filtered back apart.
//
// Safe for concurrent use; the registries, dispatcher and engine all
// log from their own goroutines through the same handler.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from configuration. Format "text" is for reading
// during development; anything else gets the JSON handler production
// runs with. Unknown output values fall back to stdout.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "homewise"),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// parseLevel maps a config string to a slog.Level, defaulting to info
// so a typo in config.yaml never silences the log.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a child logger carrying extra default attributes.
//
//	mqttLogger := logger.With("component", "mqtt")
//	mqttLogger.Info("connected") // includes component=mqtt
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Default is the early-startup logger, used for the few lines emitted
// before config.yaml has been loaded: JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
