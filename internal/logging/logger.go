// Package logging provides the single structured logger threaded through
// the graph runtime, nodes, and HTTP layer, following the teacher's
// constructor-injection-with-nil-defaulting convention (see
// internal/cache/cache_service.go and Planning/planning/hiplan.go).
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process-wide logger. level follows logrus level names
// ("debug", "info", "warn", "error"); an unrecognized value defaults to info.
func New(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

// OrDefault returns logger unchanged, or a sensible default info-level
// logger if logger is nil. Every component in this repo that accepts a
// *logrus.Logger calls this at construction time instead of special-casing
// nil everywhere it logs.
func OrDefault(logger *logrus.Logger) *logrus.Logger {
	if logger != nil {
		return logger
	}
	return New("info")
}
