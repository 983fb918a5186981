// Package logging wires the shared zerolog logger for every service.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger tagged with the owning service name. Every call
// site adds event_id/trace_id fields rather than formatting them into
// the message, so log lines stay greppable/structured in production.
func New(service string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	w := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	if os.Getenv("LOG_FORMAT") == "json" {
		return zerolog.New(os.Stdout).With().Timestamp().Str("service", service).Logger()
	}
	return zerolog.New(w).With().Timestamp().Str("service", service).Logger()
}
