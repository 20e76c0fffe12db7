package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

var (
	log  = newLogger()
	base = logrus.NewEntry(log)
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	return l
}

// Setup applies the configured level and format. Development mode logs
// human-readable text; everything else logs JSON tagged with service.
func Setup(level, mode, service string) {
	parsedLevel, err := logrus.ParseLevel(level)
	if err != nil {
		parsedLevel = logrus.InfoLevel
	}
	log.SetLevel(parsedLevel)

	if mode == "development" {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
	}

	base = logrus.NewEntry(log)
	if service != "" {
		base = base.WithField("service", service)
	}
}

func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithTrace tags an entry with the request trace id carried by ctx, if any.
func WithTrace(ctx context.Context) *logrus.Entry {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return base.WithField("trace_id", traceID)
	}
	return base
}

func WithField(key string, value interface{}) *logrus.Entry {
	return base.WithField(key, value)
}

func WithFields(fields map[string]interface{}) *logrus.Entry {
	return base.WithFields(fields)
}

func WithMachine(machineID int64) *logrus.Entry {
	return base.WithField("machine_id", machineID)
}

func WithModel(version int64) *logrus.Entry {
	return base.WithField("model_version", version)
}

func Debugf(format string, args ...interface{}) {
	base.Debugf(format, args...)
}

func Info(msg string) {
	base.Info(msg)
}

func Infof(format string, args ...interface{}) {
	base.Infof(format, args...)
}

func Warn(msg string) {
	base.Warn(msg)
}

func Warnf(format string, args ...interface{}) {
	base.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	base.Errorf(format, args...)
}

// RecoveryWriter receives panic dumps from the HTTP recovery middleware.
func RecoveryWriter() io.Writer {
	return log.WriterLevel(logrus.ErrorLevel)
}

// CronAdapter routes scheduler logs through the package logger.
type CronAdapter struct{}

func CronLogger() CronAdapter {
	return CronAdapter{}
}

func (CronAdapter) Info(msg string, keysAndValues ...interface{}) {
	fieldsFrom(keysAndValues).Debug("cron: " + msg)
}

func (CronAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	fieldsFrom(keysAndValues).WithError(err).Error("cron: " + msg)
}

func fieldsFrom(keysAndValues []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return base.WithFields(fields)
}
