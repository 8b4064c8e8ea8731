package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-evedoor/internal/infrastructure/config"
)

// ServiceName is attached to every log entry as the "service" field.
const ServiceName = "evedoor"

// ComponentKey is the attribute naming the part of the simulator that
// produced an entry (platform, bridge, api).
const ComponentKey = "component"

// Logger wraps slog.Logger with simulator-specific defaults.
//
// Loggers derived through With or Component share their parent's level, so
// SetDebug on any of them changes the verbosity of the whole tree.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger

	level      *slog.LevelVar
	configured slog.Level
}

// New creates a new Logger with the specified configuration.
//
// It configures:
//   - Output stream (stdout or stderr)
//   - Format (json or text)
//   - Minimum level (debug, info, warn, error)
//   - Default fields: service and version
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	// Determine output writer
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	return NewWithWriter(output, cfg, version)
}

// NewWithWriter creates a Logger that writes to w instead of the configured
// output stream.
//
// Parameters:
//   - w: Destination for log entries (tests pass a bytes.Buffer or io.Discard)
//   - cfg: Logging configuration; Output is ignored
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger writing to w
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	// Parse log level
	configured := parseLevel(cfg.Level)
	level := new(slog.LevelVar)
	level.Set(configured)

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	// Add default fields
	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	})

	return &Logger{
		Logger:     slog.New(handler),
		level:      level,
		configured: configured,
	}
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
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

// SetDebug switches the logger tree to debug level, or back to the level
// from the logging configuration when on is false.
//
// The platform's debug flag maps onto this so a single accessory can be
// made verbose without editing the logging section.
func (l *Logger) SetDebug(on bool) {
	if on {
		l.level.Set(slog.LevelDebug)
		return
	}
	l.level.Set(l.configured)
}

// Level returns the level currently in effect.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// With returns a new Logger with additional default attributes.
//
// Parameters:
//   - args: Alternating keys and values, as accepted by slog.Logger.With
//
// Returns:
//   - *Logger: Child logger sharing this logger's level
//
// Example:
//
//	engineLogger := logger.With("device_id", id)
//	engineLogger.Info("tick") // Includes device_id
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:     l.Logger.With(args...),
		level:      l.level,
		configured: l.configured,
	}
}

// Component returns a child logger tagged with the component that owns it.
//
// Parameters:
//   - name: Component name, e.g. "platform" or "api"
//
// Returns:
//   - *Logger: Child logger with component=name on every entry
func (l *Logger) Component(name string) *Logger {
	return l.With(ComponentKey, name)
}

// Default creates a default logger for use before configuration is loaded.
//
// This logger outputs to stdout in JSON format at info level.
//
// Returns:
//   - *Logger: Bootstrap logger tagged with version "dev"
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
