// Package logger provides the process-wide structured logger
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
	With().Timestamp().Logger()

// Logger returns the shared logger
func Logger() zerolog.Logger {
	return logger
}

// Set replaces the shared logger, for callers that want file output or a
// different level
func Set(l zerolog.Logger) {
	logger = l
}

// Disable silences all logging, used by tests
func Disable() {
	logger = zerolog.Nop()
}
