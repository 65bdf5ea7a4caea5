package extentwriter

import (
	"log/slog"
	"sync/atomic"
)

// logger is shared by all extent writers. GC cleanups read it from their
// own goroutine.
var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.Default())
}

// SetLogger configures the global logger
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

func log() *slog.Logger {
	return logger.Load()
}
