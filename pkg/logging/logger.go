// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Fields are attached to every entry, e.g. the run ID.
	Fields map[string]string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	ctx := zerolog.New(output).With().Timestamp()
	for key, value := range cfg.Fields {
		ctx = ctx.Str(key, value)
	}
	logger := ctx.Logger()

	log.Logger = logger

	return logger
}

// ParseLevel converts LogLevel to zerolog.Level. Unknown levels map to info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per page and per item detail
//   - Page fetched (group_index, page_token, records, has_next)
//   - Decoded item progress ("%d: video %s")
//
// Info: normal run events
//   - Run started / finished with the summary
//   - Checkpoint written (destination, records)
//   - Fetch succeeded after timeout retry
//
// Warn: the run continues
//   - Fetch timed out, retrying
//   - Group abandoned after a failed fetch
//   - Malformed item skipped
//   - Run interrupted
//
// Error: the run stops or loses progress
//   - Quota exceeded
//   - Flush failed (records kept in buffer)
//   - Panic recovered
//   - Configuration errors
//
// Context Fields:
//   - run_id: UUIDv7 of the run
//   - component: client, fetcher, checkpoint, runner, sink, cli
//   - group_index, group_size: position and size of the identifier group
//   - page_token: cursor of the fetched page
//   - error_class: quota, timeout, client, server, network, decode
//   - destination, uri: flush target
//   - records, buffered: record counts
