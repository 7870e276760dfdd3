package contract

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	logMu  sync.RWMutex
	logger = newLogger(os.Stderr, zerolog.InfoLevel)
)

func newLogger(out io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Logger returns the process-wide diagnostic logger. It always writes to stderr
// unless redirected with SetLogOutput, so report output on stdout stays clean.
func Logger() *zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	l := logger
	return &l
}

// SetLogLevel parses and applies the log level (trace, debug, info, warn, error).
func SetLogLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	logMu.Lock()
	defer logMu.Unlock()
	logger = logger.Level(lvl)
	return nil
}

// SetLogOutput redirects diagnostics, keeping the current level.
func SetLogOutput(out io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = newLogger(out, logger.GetLevel())
}
