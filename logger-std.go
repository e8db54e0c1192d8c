//go:build !tinygo

package ra02

import (
	"github.com/sirupsen/logrus"
)

func init() {
	globalLogger = NewLogrusLogger(logrus.StandardLogger())
}

// logrusLogger is the default logger on Linux. It tags every line with
// component=ra02 so driver output can be told apart from the application's.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger adapts a logrus logger to the Logger interface.
func NewLogrusLogger(l *logrus.Logger) Logger {
	return &logrusLogger{entry: l.WithField("component", "ra02")}
}

func (l *logrusLogger) Debug(msg string) { l.entry.Debug(msg) }
func (l *logrusLogger) Info(msg string)  { l.entry.Info(msg) }
func (l *logrusLogger) Warn(msg string)  { l.entry.Warn(msg) }
func (l *logrusLogger) Error(msg string) { l.entry.Error(msg) }
