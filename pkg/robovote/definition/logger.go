package definition

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ringfleet/robovote/pkg/robovote/types"
)

// LogrusLogger adapts a *logrus.Logger to the types.Logger interface.
// Grounded on pkg/mcast/definition/default_logger.go's method shapes, but
// backed by logrus instead of the stdlib log.Logger the teacher wraps —
// logrus is already an (indirect) dependency of the teacher's own go.mod,
// and the pack consistently reaches for it as its structured-logging
// library of choice.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger builds the default logger for a peer, tagging every line
// with the peer's id the way the teacher's DefaultLogger prefixes "mcast".
func NewLogrusLogger(peerID int, debug bool) *LogrusLogger {
	base := logrus.New()
	base.Out = os.Stderr
	if debug {
		base.SetLevel(logrus.DebugLevel)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}
	return &LogrusLogger{entry: base.WithField("robot", peerID)}
}

func (l *LogrusLogger) Info(v ...interface{})                    { l.entry.Info(v...) }
func (l *LogrusLogger) Infof(format string, v ...interface{})    { l.entry.Infof(format, v...) }
func (l *LogrusLogger) Warn(v ...interface{})                    { l.entry.Warn(v...) }
func (l *LogrusLogger) Warnf(format string, v ...interface{})    { l.entry.Warnf(format, v...) }
func (l *LogrusLogger) Error(v ...interface{})                   { l.entry.Error(v...) }
func (l *LogrusLogger) Errorf(format string, v ...interface{})   { l.entry.Errorf(format, v...) }
func (l *LogrusLogger) Debug(v ...interface{})                   { l.entry.Debug(v...) }
func (l *LogrusLogger) Debugf(format string, v ...interface{})   { l.entry.Debugf(format, v...) }
func (l *LogrusLogger) Fatal(v ...interface{})                   { l.entry.Fatal(v...) }
func (l *LogrusLogger) Fatalf(format string, v ...interface{})   { l.entry.Fatalf(format, v...) }

var _ types.Logger = (*LogrusLogger)(nil)
