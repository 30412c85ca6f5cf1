package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/pkg/logger"
	"github.com/fastygo/taskhub/usecase"
)

// OutboxBridge adapts the processor to the use case recorder port. Events
// are recorded on a context detached from the request deadline.
type OutboxBridge struct {
	processor *OutboxProcessor
	timeout   time.Duration
	logger    *zap.Logger
}

func NewOutboxBridge(processor *OutboxProcessor, timeout time.Duration, log *zap.Logger) *OutboxBridge {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OutboxBridge{processor: processor, timeout: timeout, logger: log}
}

func (b *OutboxBridge) Record(ctx context.Context, event domain.Event) error {
	if b.processor == nil {
		return domain.ErrInvalidPayload
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	if err := b.processor.Record(recordCtx, event); err != nil {
		return err
	}
	logger.WithRequestID(ctx, b.logger).Debug("activity event recorded",
		zap.String("event", event.Name),
		zap.String("entity_id", event.EntityID))
	return nil
}

var _ usecase.EventRecorder = (*OutboxBridge)(nil)
