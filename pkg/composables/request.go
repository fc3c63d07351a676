package composables

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/servicedesk/pkg/constants"
)

// UseLogger returns the request-scoped logger, or the standard logger when
// ctx was not produced by the logging middleware.
func UseLogger(ctx context.Context) *logrus.Entry {
	switch v := ctx.Value(constants.LoggerKey).(type) {
	case *logrus.Entry:
		return v
	case *logrus.Logger:
		return logrus.NewEntry(v)
	default:
		return logrus.NewEntry(logrus.StandardLogger())
	}
}

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, constants.RequestIDKey, id)
}

func UseRequestID(ctx context.Context) string {
	id, _ := ctx.Value(constants.RequestIDKey).(string)
	return id
}

func UseRequestStart(ctx context.Context) (time.Time, bool) {
	start, ok := ctx.Value(constants.RequestStart).(time.Time)
	return start, ok
}
