package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the process logger. Development gets the human-readable
// console writer, everything else JSON lines. An unknown level falls back
// to info.
func New(level, env string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, env)
}

// NewWithWriter is New with an explicit output.
func NewWithWriter(w io.Writer, level, env string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if env == "development" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
