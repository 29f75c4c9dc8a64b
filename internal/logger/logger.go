package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus entry so call sites can attach fields fluently.
type Logger struct {
	*logrus.Entry
}

// New builds a logger writing to stdout with the given level and format.
// Unknown levels fall back to info; any format other than "json" means text.
func New(level, format string) *Logger {
	return NewWithOutput(level, format, os.Stdout)
}

// NewWithOutput is New with an explicit destination, used by tests.
func NewWithOutput(level, format string, out io.Writer) *Logger {
	log := logrus.New()
	log.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &Logger{Entry: logrus.NewEntry(log)}
}

// With returns a child logger carrying the extra field.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value)}
}

// WithFields returns a child logger carrying all extra fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{Entry: l.Entry.WithFields(logrus.Fields(fields))}
}

// Discard returns a logger that drops everything, for tests.
func Discard() *Logger {
	return NewWithOutput("panic", "text", io.Discard)
}
