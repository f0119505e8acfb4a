package composables

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/heshamhussin961-design/family-tree/pkg/constants"
)

// WithLogger returns a new context carrying the logger entry.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the logger from the context.
// Without one, the standard logrus logger is used.
func UseLogger(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		switch typed := ctx.Value(constants.LoggerKey).(type) {
		case *logrus.Entry:
			return typed
		case *logrus.Logger:
			return logrus.NewEntry(typed)
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
