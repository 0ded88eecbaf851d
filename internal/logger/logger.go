// Package logger wraps logrus with a context-aware accessor: callers
// fetch a *Logger from a context.Context (which may carry a job or
// request ID already attached) and log structured fields rather than
// interpolating values into the message string.
package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKey string

const loggerCtxKey ctxKey = "logger"
const jobIDCtxKey ctxKey = "job_id"

// Logger is a thin facade over *logrus.Entry.
type Logger struct {
	entry *logrus.Entry
}

var root = logrus.New()

func init() {
	root.SetFormatter(&logrus.JSONFormatter{})
}

// SetLevel sets the root logger's level from a string ("debug", "info", ...).
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	root.SetLevel(lvl)
}

// WithJobID returns a context carrying job_id for every subsequent
// GetLogger(ctx) call.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDCtxKey, jobID)
}

// GetLogger returns a Logger enriched with the job_id found on ctx, if any.
func GetLogger(ctx context.Context) *Logger {
	fields := logrus.Fields{}
	if jobID, ok := ctx.Value(jobIDCtxKey).(string); ok && jobID != "" {
		fields["job_id"] = jobID
	}
	return &Logger{entry: root.WithFields(fields)}
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l *Logger) Info(args ...interface{})                  { l.entry.Info(args...) }
func (l *Logger) Warn(args ...interface{})                  { l.entry.Warn(args...) }
func (l *Logger) Error(args ...interface{})                 { l.entry.Error(args...) }

// ErrorWithFields logs err at Error level with additional structured fields.
func (l *Logger) ErrorWithFields(err error, fields map[string]interface{}) {
	e := l.entry
	if fields != nil {
		e = e.WithFields(fields)
	}
	e.WithError(err).Error()
}
