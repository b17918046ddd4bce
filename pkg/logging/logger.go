// Package logging configures zerolog for archiver runs.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName is attached to every log line as "service".
const ServiceName = "leaderboard-archiver"

// LogLevel names a minimum level: debug, info, warn or error.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written; unknown values mean info.
	Level LogLevel

	// Pretty switches from JSON lines to console output.
	Pretty bool

	// Output defaults to os.Stderr so stdout stays free for command output.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup builds the logger described by cfg and installs it as the global
// zerolog logger used by log.With() in every package.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
	}

	logger := zerolog.New(out).With().
		Timestamp().
		Str("service", ServiceName).
		Logger()

	log.Logger = logger
	return logger
}

// parseLevel maps a LogLevel to zerolog; "warning" is accepted for warn.
func parseLevel(level LogLevel) zerolog.Level {
	s := strings.ToLower(string(level))
	if s == "warning" {
		s = "warn"
	}
	switch l, err := zerolog.ParseLevel(s); {
	case err != nil, s == "", l < zerolog.DebugLevel, l > zerolog.ErrorLevel:
		return zerolog.InfoLevel
	default:
		return l
	}
}

// ValidLevel reports whether s names a supported level.
func ValidLevel(s string) bool {
	switch LogLevel(strings.ToLower(s)) {
	case LevelDebug, LevelInfo, LevelWarn, "warning", LevelError:
		return true
	}
	return false
}

// NewLogger derives a logger for component from the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRunID tags logger with the run identifier.
func WithRunID(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

// Levels:
//
// Debug: individual requests, worker start/stop, lock acquire/release
// Info:  run start, progress every 20 outcomes, archive saved, compression, summary
// Warn:  failed descriptors, lock held elsewhere, run record or metrics export failures
// Error: configuration errors, nothing to archive, archive write failures
//
// Fields:
//   - service, component, run_id
//   - descriptor: {display}_{control}_{pb}
//   - error_class: client, server, unexpected, network, timeout
//   - reason: failure text as shown in the summary
//   - processed, total, successful, failed
