// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
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

	// File is an optional path to additionally append logs to.
	File string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
// When cfg.File is set, logs are written both to cfg.Output and the file.
func Setup(cfg Config) (zerolog.Logger, error) {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("open log file: %w", err)
		}
		output = zerolog.MultiLevelWriter(output, f)
	}

	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger, nil
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
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
// Debug: Detailed information for debugging
//   - HTTP request/response flow (skip, top, filter, status, elapsed)
//   - State file reads/writes
//   - Internal filter mode changes
//
// Info: Normal operation events
//   - Export start/end with parameters
//   - Per-page batch summaries
//   - Resume decisions (skipped slices, restored offsets)
//   - Output part rotation
//
// Warn: Warning conditions that don't prevent operation
//   - Retryable HTTP/network errors with attempt counts
//   - Server-side date filter downgrade to client-side filtering
//
// Error: Error conditions requiring attention
//   - Fatal walk aborts (consecutive error budget exhausted, 4xx)
//   - State persistence failures
//   - Configuration errors
//
// Context Fields:
//   - country: partition country code
//   - slice: time slice label
//   - skip: current page offset
//   - status_code: HTTP status code
//   - error_class: error classification (client, server, rate_limit,
//     gateway_timeout, network)
//   - run_id: unique id of one export run
