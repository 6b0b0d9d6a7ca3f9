package hostcall

import "github.com/sirupsen/logrus"

// logrusLogger adapts *logrus.Entry to the Logger interface.
type logrusLogger struct{ entry *logrus.Entry }

// NewLogrusLogger wraps a logrus entry (typically one already carrying
// a `component=pvm` field) as a Logger.
func NewLogrusLogger(entry *logrus.Entry) Logger { return logrusLogger{entry} }

func (l logrusLogger) WithField(key string, value interface{}) Logger {
	return logrusLogger{l.entry.WithField(key, value)}
}

func (l logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
