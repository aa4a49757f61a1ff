// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
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

// Component names used by the library's loggers.
const (
	ComponentClient     = "xrpl-client"
	ComponentPagination = "xrpl-pagination"
	ComponentTransport  = "xrpl-transport"
	ComponentRateLimit  = "xrpl-ratelimit"
	ComponentProxy      = "xrpl-proxy"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

type envConfig struct {
	Level  string `env:"XRPL_LOG_LEVEL" envDefault:"info"`
	Pretty bool   `env:"XRPL_LOG_PRETTY" envDefault:"false"`
}

// ConfigFromEnv reads XRPL_LOG_LEVEL and XRPL_LOG_PRETTY. Output is
// os.Stderr.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.Level = LogLevel(ec.Level)
	cfg.Pretty = ec.Pretty
	return cfg, nil
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
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
// Debug: request flow
//   - Dispatch of each guarded request (command, ledger_index)
//   - Each fetched page (page, batch, count, marker_present)
//   - Cache hits and stores
//
// Info: connection lifecycle
//   - Connected (handshake ledger_index), disconnected (close code)
//   - Proxy startup/shutdown
//
// Warn: degraded but operating
//   - Requests rejected by the ledger version guard (known_ledger)
//   - Load warnings and slowDown replies
//   - Dial retries, cache errors
//
// Error: conditions requiring attention
//   - Dial attempts exhausted, ledger stream subscription failed
//   - Critical load blocks
//   - Configuration errors
//
// Context Fields:
//   - component: logger component (see Component* constants)
//   - command: rippled command
//   - ledger_index: the request's ledger version selector
//   - known_ledger: most recent validated ledger known to the client
//   - page, batch, count, count_to, marker_present: aggregation progress
//   - error_kind: transport error kind (connection, protocol, response)
