package logger

import corelogger "github.com/kilianp07/octowatt/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// New returns a Logger tagged with component. Output follows the last call to
// Configure; before that, APP_ENV=dev selects the console writer.
func New(component string) Logger {
	return NewZerologLogger(component)
}
