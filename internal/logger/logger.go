package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// log starts disabled so library code stays quiet until a binary calls Init.
var log = zerolog.Nop()

// Init configures the package logger writing to stdout.
func Init(level string, pretty bool) {
	InitWithWriter(os.Stdout, level, pretty)
}

// InitWithWriter configures the package logger writing to w.
func InitWithWriter(w io.Writer, level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	output := w
	if pretty {
		output = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	log = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

func Get() *zerolog.Logger {
	return &log
}

func WithComponent(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

func WithSprint(sprintID string) zerolog.Logger {
	return log.With().Str("sprint_id", sprintID).Logger()
}

// WithModel tags entries with the board record they concern.
func WithModel(model, id string) zerolog.Logger {
	return log.With().Str("model", model).Str("id", id).Logger()
}

// Convenience methods
func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
