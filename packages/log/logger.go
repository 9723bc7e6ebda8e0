// Package log provides the structured logger used across proteusctl, based on logrus.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fields is a set of structured key/value pairs attached to log entries.
type Fields = logrus.Fields

// Logger is the logging surface the workflow and CLI depend on.
type Logger interface {
	Debug(msg string, fields ...Fields)
	Info(msg string, fields ...Fields)
	Warn(msg string, fields ...Fields)
	Error(msg string, fields ...Fields)
	// With returns a child logger that adds fields to every entry.
	With(fields Fields) Logger
}

// Format selects the log line encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

type options struct {
	level  logrus.Level
	format Format
	out    io.Writer
}

// Option is a logger option.
type Option func(*options)

// WithLevel sets the minimum level. The default is info.
func WithLevel(level string) Option {
	return func(o *options) {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			o.level = lvl
		}
	}
}

// WithFormat selects text or JSON output. The default is text.
func WithFormat(format Format) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithOutput sets the destination writer. The default is stderr.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown log format %q (use text or json)", s)
}

type entryLogger struct {
	entry *logrus.Entry
}

// New builds a Logger backed by a dedicated logrus instance.
func New(opts ...Option) Logger {
	o := &options{
		level:  logrus.InfoLevel,
		format: FormatText,
		out:    os.Stderr,
	}
	for _, opt := range opts {
		opt(o)
	}

	l := logrus.New()
	l.SetOutput(o.out)
	l.SetLevel(o.level)
	if o.format == FormatJSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			QuoteEmptyFields: true,
		})
	}

	return &entryLogger{entry: logrus.NewEntry(l)}
}

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return New(WithOutput(io.Discard))
}

func (l *entryLogger) with(fields []Fields) *logrus.Entry {
	e := l.entry
	for _, f := range fields {
		e = e.WithFields(f)
	}
	return e
}

func (l *entryLogger) Debug(msg string, fields ...Fields) { l.with(fields).Debug(msg) }
func (l *entryLogger) Info(msg string, fields ...Fields)  { l.with(fields).Info(msg) }
func (l *entryLogger) Warn(msg string, fields ...Fields)  { l.with(fields).Warn(msg) }
func (l *entryLogger) Error(msg string, fields ...Fields) { l.with(fields).Error(msg) }

func (l *entryLogger) With(fields Fields) Logger {
	return &entryLogger{entry: l.entry.WithFields(fields)}
}
