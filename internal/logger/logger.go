package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the process logger. Output is JSON on stderr with the level under
// "severity"; env "development" switches to the human readable console writer.
func New(env, level string) zerolog.Logger {
	return NewWithWriter(os.Stderr, env, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, env, level string) zerolog.Logger {
	zerolog.LevelFieldName = "severity"
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if env == "development" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	logger := zerolog.New(w).With().Timestamp().Logger()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

// Component returns a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
