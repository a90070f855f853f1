// Package logging configures the process-wide structured logger.
package logging

import (
	"os"

	"github.com/phuslu/log"
)

// New creates a leveled console logger writing to stderr. Stdout stays free
// for the stdio MCP transport.
func New(level string) *log.Logger {
	if level == "" {
		level = "info"
	}
	logger := &log.Logger{
		Level:      log.ParseLevel(level),
		TimeFormat: "2006-01-02T15:04:05Z07:00",
		Writer: &log.ConsoleWriter{
			ColorOutput:    false,
			QuoteString:    true,
			EndWithMessage: true,
			Writer:         os.Stderr,
		},
	}
	// Warnings emitted through the package-level logger land in the same place.
	log.DefaultLogger = *logger
	return logger
}
