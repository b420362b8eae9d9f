package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// log is the package-level zerolog instance. Init replaces it once the
// configuration is known; before that a sane default writes to stderr.
var log = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Init configures the global logger. level is one of debug, info, warn, error;
// pretty switches to the human console writer for local development.
func Init(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var l zerolog.Logger
	if pretty {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		l = zerolog.New(os.Stderr)
	}

	log = l.Level(lvl).With().Timestamp().Logger()
}

func Debug(msg string, args ...any) {
	emit(log.Debug(), msg, args)
}

func Info(msg string, args ...any) {
	emit(log.Info(), msg, args)
}

func Warn(msg string, args ...any) {
	emit(log.Warn(), msg, args)
}

func Error(msg string, args ...any) {
	emit(log.Error(), msg, args)
}

func Fatal(msg string, args ...any) {
	emit(log.Fatal(), msg, args)
}

// emit attaches args to the event. A bare error value is attached as the
// "error" field; everything else is consumed as alternating key/value pairs.
func emit(event *zerolog.Event, msg string, args []any) {
	for i := 0; i < len(args); {
		if err, ok := args[i].(error); ok {
			event = event.Err(err)
			i++
			continue
		}

		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			event = event.Interface("arg", args[i])
			i++
			continue
		}

		event = event.Interface(key, args[i+1])
		i += 2
	}

	event.Msg(msg)
}
