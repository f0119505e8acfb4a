package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/heshamhussin961-design/family-tree/pkg/composables"
)

func logWithFields(ctx context.Context, level logrus.Level, msg string, fields logrus.Fields) {
	composables.UseLogger(ctx).WithFields(fields).Log(level, msg)
}

func withLogFields(ctx context.Context, fields logrus.Fields) context.Context {
	return composables.WithLogger(ctx, composables.UseLogger(ctx).WithFields(fields))
}
