package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger tags every entry with the protocol it was created for.
// Debug and Info output is only emitted when the debug flag is set.
type Logger struct {
	flag  bool
	entry *logrus.Entry
}

func New(flag bool, proto string) *Logger {
	if flag {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return &Logger{
		flag: flag,
		entry: logrus.WithFields(logrus.Fields{
			"protocol": proto,
		}),
	}
}

// Discard returns a logger which drops everything. Used by tests.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{
		flag:  false,
		entry: logrus.NewEntry(l),
	}
}

func (l *Logger) DebugMode() bool {
	return l.flag
}

// With returns a child logger carrying additional fields.
func (l *Logger) With(fields logrus.Fields) *Logger {
	return &Logger{
		flag:  l.flag,
		entry: l.entry.WithFields(fields),
	}
}

func (l *Logger) Info(args ...interface{}) {
	if l.flag {
		l.entry.Info(args...)
	}
}

func (l *Logger) Debug(args ...interface{}) {
	if l.flag {
		l.entry.Debug(args...)
	}
}

func (l *Logger) Warn(args ...interface{}) {
	l.entry.Warn(args...)
}

func (l *Logger) Error(args ...interface{}) {
	l.entry.Error(args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l.flag {
		l.entry.Infof(format, args...)
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.flag {
		l.entry.Debugf(format, args...)
	}
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}
