// Package logger builds the logrus logger handed to every simrun component.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// TimestampFormat matches the millisecond timestamps simrun has always printed.
const TimestampFormat = "2006-01-02 15:04:05.000"

// Options controls where and how much the logger writes.
type Options struct {
	Level   string    // panic, fatal, error, warn, info, debug, trace
	File    string    // Optional log file, appended to
	Output  io.Writer // Defaults to os.Stderr when File is empty
	NoColor bool
}

// New creates a logger from opts. The returned close function releases the
// log file, if one was opened, and is always safe to call.
func New(opts Options) (*logrus.Logger, func() error, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: TimestampFormat,
		DisableColors:   opts.NoColor,
	})

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	log.SetLevel(level)

	closeFn := func() error { return nil }
	switch {
	case opts.File != "":
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create log file: %w", err)
		}
		log.SetOutput(f)
		closeFn = f.Close
	case opts.Output != nil:
		log.SetOutput(opts.Output)
	default:
		log.SetOutput(os.Stderr)
	}

	return log, closeFn, nil
}

// Discard returns a logger that drops everything. Used when a caller does not
// supply one.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}
