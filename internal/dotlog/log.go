// Package dotlog is the engine's shared structured-logging entry point.
package dotlog

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger is the global logger instance used by every component that does
// not carry its own component-scoped logger.
var Logger zerolog.Logger

// Level mirrors the subset of zerolog levels the engine's config surface
// exposes to callers.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls how the global logger is initialized.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

func init() {
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Init (re)configures the global logger. Call once at process startup.
// The level applies to every logger; the output and format apply to
// loggers derived via For() after Init, while loggers derived earlier
// (e.g. package-level component loggers) keep the default stderr output.
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
		output = os.Stderr
	}
	if !cfg.JSONOutput {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}
	Logger = zerolog.New(output).With().Timestamp().Logger()
}

// For returns a child logger tagged with the owning component's name, e.g.
// dotlog.For("wal") so every record from the write-ahead log carries
// component="wal" without each call site repeating it.
func For(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithRequestID tags logger with a fresh correlation id, for scoping a
// single operation's (e.g. one engine.Put call's) log lines together
// across the components it touches.
func WithRequestID(logger zerolog.Logger) zerolog.Logger {
	return logger.With().Str("request_id", uuid.NewString()).Logger()
}
