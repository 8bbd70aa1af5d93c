// Package applog provides the database's structured logging, adapted
// from cuemby-warren/pkg/log: a global zerolog.Logger configured once
// via Init, with WithComponent child loggers for each internal package
// (codec, storage, coalesce, query, …).
package applog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Level is a logging verbosity threshold.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures the global logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger. Safe to call more than once (the
// CLI calls it from cobra.OnInitialize after flags parse).
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

func init() {
	// A usable default before Init runs, e.g. for library callers that
	// never touch the CLI's logging setup.
	Init(Config{Level: InfoLevel})
}

// WithComponent returns a child logger tagging every record with the
// given component name.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithCollection returns a child logger tagging every record with the
// given collection name.
func WithCollection(collection string) zerolog.Logger {
	return Logger.With().Str("collection", collection).Logger()
}
