// Package logger builds the one zerolog.Logger every AEGIS component is
// handed at construction — the orchestrator, each fetcher, every AEGIS
// analyser, the backtest engine, the scheduler's jobs — so a fetch
// failure, a veto, and a circuit-breaker halt all land in the same
// structured stream instead of three different formats.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // enable pretty console output (used by the CLI; cron/service runs stay JSON)
}

// New creates the process-wide structured logger described by cfg.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// SetGlobalLogger sets the package-level logger.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}

// Component tags log derives from the process logger with a "component"
// field, the idiom every AEGIS subsystem (fetcher, scheduler, orchestrator,
// screener, collector, server, broker client) repeats on construction so a
// mixed log stream can be filtered back down to one subsystem's lines.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
