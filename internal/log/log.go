// Package log wraps zerolog with the component-scoped child-logger
// pattern the rest of this repository relies on, grounded on
// cuemby/warren's pkg/log: a single global Logger set up once from
// config, plus WithComponent for per-package child loggers.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide base logger. Every component logger
// derives from it via WithComponent.
var Logger zerolog.Logger

// Level names accepted by Config.Level (spec §10.1).
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Config configures the global logger (spec §10.1 "a level and an
// output-format switch").
type Config struct {
	Level      string
	JSONOutput bool
	Output     io.Writer
}

// Init sets up the global Logger. Call once at process start, before
// any component logger is derived.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent returns a child logger tagging every record with
// component=name (spec §10.1: "log.WithComponent("coordinator")").
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
