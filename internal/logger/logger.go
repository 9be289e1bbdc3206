package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger *zerolog.Logger
)

// Init configures the process logger. Output goes to stderr through a
// console writer so it never interleaves with report output on stdout.
// When file is non-empty, records are also appended to it as JSON.
func Init(level string, file string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	if file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		out = zerolog.MultiLevelWriter(out, f)
	}

	l := zerolog.New(out).Level(lvl).With().Timestamp().Logger()

	mu.Lock()
	logger = &l
	mu.Unlock()
	return nil
}

// Get returns the configured logger, or a discard logger before Init.
func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return zerolog.Nop()
	}
	return *logger
}
