// Package logging configures the logrus logger shared by commands and services.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Supported formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// New returns a logger writing to w with the given level and format.
func New(w io.Writer, level, format string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	l := log.New()
	l.SetOutput(w)
	l.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON, "":
		l.SetFormatter(&log.JSONFormatter{})
	case FormatText:
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log format %q (want %s or %s)", format, FormatJSON, FormatText)
	}

	return l, nil
}

// Setup returns a stderr logger. stdout is reserved for command output.
func Setup(level, format string) (*log.Logger, error) {
	return New(os.Stderr, level, format)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}
