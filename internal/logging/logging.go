// Package logging configures the structured zerolog logger shared across
// every component (eventloop, transport, securechannel, session,
// subscription) and provides panic-recovery helpers for goroutines.
package logging

import (
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// Format selects the log sink's output encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatPretty Format = "pretty"
)

// Options configures New.
type Options struct {
	Level   string
	Format  Format
	Service string
}

// New builds a zerolog.Logger writing to stdout, JSON by default or a
// human-readable console writer when Format is FormatPretty.
func New(opts Options) zerolog.Logger {
	var output io.Writer = os.Stdout

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if opts.Format == FormatPretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	service := opts.Service
	if service == "" {
		service = "opcua-server"
	}

	return zerolog.New(output).With().Timestamp().Caller().Str("service", service).Logger()
}

// RecoverPanic is deferred in the server's accept, loop-driving and
// per-connection goroutines so a panic there is logged instead of
// crashing the process.
func RecoverPanic(logger zerolog.Logger, goroutine string, fields map[string]interface{}) {
	if r := recover(); r != nil {
		event := logger.Error().
			Str("goroutine", goroutine).
			Interface("panic_value", r).
			Str("stack_trace", string(debug.Stack()))
		for k, v := range fields {
			event = event.Interface(k, v)
		}
		event.Msg("goroutine panic recovered")
	}
}

// WithError logs err with msg and arbitrary contextual fields.
func WithError(logger zerolog.Logger, err error, msg string, fields map[string]interface{}) {
	event := logger.Error().Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
