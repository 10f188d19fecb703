package main

import (
	"context"

	"github.com/invencare/go-auth"
	"github.com/invencare/go-auth/activitymap"
	"github.com/sirupsen/logrus"
)

// logrusLogger adapts a logrus entry to auth.Logger.
type logrusLogger struct {
	entry *logrus.Entry
}

var _ auth.Logger = logrusLogger{}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func namedLogger(logger *logrus.Logger, name string) auth.Logger {
	return logrusLogger{entry: logger.WithField("component", name)}
}

func (l logrusLogger) Debug(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l logrusLogger) Info(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l logrusLogger) Warn(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l logrusLogger) Error(format string, args ...any) { l.entry.Errorf(format, args...) }

// auditSink writes normalized activity records to the audit log.
func auditSink(logger *logrus.Logger) auth.ActivitySink {
	audit := logger.WithField("component", "audit")
	return activitymap.Sink(func(_ context.Context, record activitymap.Normalized) error {
		audit.WithFields(logrus.Fields{
			"actor":    record.ActorID,
			"object":   record.ObjectID,
			"channel":  record.Channel,
			"metadata": record.Metadata,
		}).Info(record.Verb)
		return nil
	}, activitymap.WithDefaultChannel("dashboard"))
}
