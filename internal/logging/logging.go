// Package logging builds the process logger. Logs always go to stderr, since
// stdout carries the stdio transport and CLI output.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Options struct {
	Level  string // trace|debug|info|warn|error
	Format string // json|console
	// APILog tees log output to APIFile.
	APILog  bool
	APIFile string
}

// New returns a logger for opts writing to w (stderr when nil) and a
// function that closes the API log file, if one was opened.
func New(opts Options, w io.Writer) (zerolog.Logger, func() error, error) {
	noClose := func() error { return nil }
	if w == nil {
		w = os.Stderr
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), noClose, fmt.Errorf("log level: %w", err)
		}
		level = l
	}

	if opts.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	closer := noClose
	if opts.APILog && opts.APIFile != "" {
		f, err := os.OpenFile(opts.APIFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), noClose, fmt.Errorf("open api log: %w", err)
		}
		w = zerolog.MultiLevelWriter(w, f)
		closer = f.Close
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}
