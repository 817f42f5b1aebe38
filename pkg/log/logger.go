// Package log provides structured, leveled logging with named subsystems and
// key-value context, backed by zap. Output is logfmt by default and JSON on
// request.
package log

import "fmt"

// Level is a log severity level.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// ParseLevel converts a level string into a Level, defaulting to info for the
// empty string.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal:
		return Level(s), nil
	case "":
		return LevelInfo, nil
	default:
		return "", fmt.Errorf("unknown log level: %q", s)
	}
}

// Config controls the output format and minimum severity of a logger.
type Config struct {
	// Format selects the encoder: "logfmt" (default) or "json".
	Format string `env:"LOG_FORMAT" env-default:"logfmt"`
	// Level is the minimum severity that gets emitted.
	Level Level `env:"LOG_LEVEL" env-default:"info"`
}

// Logger is a leveled, structured logger. keysAndValues are treated as
// alternating key-value pairs, e.g. ("key1", value1, "key2", value2).
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// Fatal logs the message and terminates the process.
	Fatal(msg string, keysAndValues ...any)

	// WithName returns a logger whose name has the given component appended
	// ("parent.child").
	WithName(name string) Logger
	// Name returns the dot-joined name of this logger.
	Name() string
	// WithKV returns a logger that attaches the given key-value pairs to
	// every entry.
	WithKV(keysAndValues ...any) Logger
	// GetAllKV returns all key-value pairs attached via WithKV.
	GetAllKV() []any
	// AddCallerSkip returns a logger that skips additional stack frames when
	// resolving the caller, for use inside logging wrappers.
	AddCallerSkip(skip int) Logger
}
