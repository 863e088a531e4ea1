package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. Unknown levels fall back to info rather
// than failing startup.
func New(level string) zerolog.Logger {
	return NewWithWriter(level, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339Nano})
}

// NewWithWriter is New with an explicit sink, for tests.
func NewWithWriter(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
