// Package logging provides the structured logger every component in the
// runtime derives its own child logger from.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	baseMu     sync.RWMutex
	baseLogger = zerolog.New(defaultWriter()).With().Timestamp().Logger()
)

func defaultWriter() io.Writer {
	if os.Getenv("TOOLRT_LOG_JSON") == "1" {
		return os.Stderr
	}
	return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
}

// SetOutput redirects the base logger's sink. Tests use this to capture
// output without touching the process-global stderr.
func SetOutput(w io.Writer) {
	baseMu.Lock()
	defer baseMu.Unlock()
	baseLogger = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel adjusts the minimum level the base logger emits.
func SetLevel(level zerolog.Level) {
	baseMu.Lock()
	defer baseMu.Unlock()
	baseLogger = baseLogger.Level(level)
}

// Component returns a child logger tagged with the given component name.
// Every package in the runtime calls this once at construction time rather
// than reaching for a package-level logger, so call sites can be tested with
// an isolated logger when needed.
func Component(name string) zerolog.Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return baseLogger.With().Str("component", name).Logger()
}
