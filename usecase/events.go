package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/pkg/logger"
)

// EventRecorder receives activity events once the change they describe is committed.
type EventRecorder interface {
	Record(ctx context.Context, event domain.Event) error
}

// Emit hands event to recorder. Recording is best effort: a failure is logged
// and never reaches the caller.
func Emit(ctx context.Context, recorder EventRecorder, log *zap.Logger, event domain.Event) {
	if recorder == nil {
		return
	}
	if err := recorder.Record(ctx, event); err != nil {
		logger.WithRequestID(ctx, log).Warn("activity event not recorded",
			zap.String("event", event.Name),
			zap.String("entity_id", event.EntityID),
			zap.Error(err),
		)
	}
}
