// Package logging provides the shared logrus setup used across the
// indexer: one configured logger, handed to every component at
// construction time rather than reached for as a package global.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options configures New.
type Options struct {
	// Level is a logrus level name ("debug", "info", "warn", "error").
	// Invalid or empty values fall back to "info".
	Level string
	// ToFile, when true, writes entries to FilePath in addition to
	// stderr and switches the formatter to JSON for both outputs.
	ToFile   bool
	FilePath string
}

// New builds a *logrus.Logger configured per opts. It never returns nil;
// a bad file path degrades to stderr-only logging with a warning entry.
func New(opts Options) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if opts.ToFile && opts.FilePath != "" {
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.WithError(err).Warn("logging: could not open log file, continuing with stderr only")
		} else {
			log.SetOutput(io.MultiWriter(os.Stderr, f))
			log.SetFormatter(&logrus.JSONFormatter{})
		}
	}

	return log
}
