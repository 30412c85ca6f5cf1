package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/internal/infrastructure/outbox"
	"github.com/fastygo/taskhub/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// EventPublisher forwards delivered events to subscribers outside the process.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// ProcessorConfig controls how frequently the outbox is drained and pruned.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// OutboxProcessor delivers activity events to the activity log and the
// broker, parking them in the outbox while delivery fails.
type OutboxProcessor struct {
	store     *outbox.Store
	monitor   ConnectionHealth
	activity  repository.ActivityRepository
	publisher EventPublisher
	logger    *zap.Logger
	cron      *cron.Cron
	cfg       ProcessorConfig
}

func NewOutboxProcessor(
	store *outbox.Store,
	monitor ConnectionHealth,
	activity repository.ActivityRepository,
	publisher EventPublisher,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *OutboxProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	// cron schedules "@every" in whole seconds.
	if cfg.Interval < time.Second {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 72 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	op := &OutboxProcessor{
		store:     store,
		monitor:   monitor,
		activity:  activity,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		cron:      cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	if _, err := op.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := op.Drain(ctx); err != nil {
			op.logger.Error("outbox drain failed", zap.Error(err))
		}
	}); err != nil {
		logger.Error("outbox drain not scheduled", zap.String("schedule", schedule), zap.Error(err))
	}
	if _, err := op.cron.AddFunc("@hourly", func() {
		removed, err := op.store.Cleanup(time.Now().Add(-op.cfg.Retention))
		if err != nil {
			op.logger.Error("outbox cleanup failed", zap.Error(err))
			return
		}
		if removed > 0 {
			op.logger.Warn("expired outbox entries dropped", zap.Int("count", removed))
		}
	}); err != nil {
		logger.Error("outbox cleanup not scheduled", zap.Error(err))
	}

	return op
}

// Start launches the cron scheduler.
func (op *OutboxProcessor) Start() {
	if op == nil || op.cron == nil {
		return
	}
	op.cron.Start()
	op.logger.Info("outbox processor started")
}

// Stop waits for running jobs or ctx, whichever ends first.
func (op *OutboxProcessor) Stop(ctx context.Context) {
	if op == nil || op.cron == nil {
		return
	}
	stopCtx := op.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	op.logger.Info("outbox processor stopped")
}

// Record delivers event immediately and falls back to the outbox.
func (op *OutboxProcessor) Record(ctx context.Context, event domain.Event) error {
	if op == nil || op.store == nil {
		return errors.New("outbox processor not configured")
	}

	if op.monitor == nil || op.monitor.IsOnline() {
		err := op.deliver(ctx, event)
		if err == nil {
			return nil
		}
		op.logger.Warn("immediate delivery failed, queueing",
			zap.String("event", event.Name),
			zap.Error(err))
	}
	return op.store.Enqueue(outbox.Entry{Event: event})
}

// Drain retries queued events. Entries failing MaxRetries times are dropped.
func (op *OutboxProcessor) Drain(ctx context.Context) error {
	if op == nil || op.store == nil {
		return nil
	}
	if op.monitor != nil && !op.monitor.IsOnline() {
		op.logger.Debug("skipping outbox drain (offline)")
		return nil
	}

	entries, err := op.store.GetBatch(op.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := op.deliver(ctx, entry.Event); err != nil {
			op.logger.Error("failed to deliver outbox entry",
				zap.String("event_id", entry.ID()),
				zap.String("event", entry.Event.Name),
				zap.Error(err))

			entry.Retries++
			if entry.Retries >= op.cfg.MaxRetries {
				op.logger.Warn("dropping outbox entry (max retries reached)", zap.String("event_id", entry.ID()))
				_ = op.store.Remove(entry)
				continue
			}
			if err := op.store.Requeue(entry); err != nil {
				op.logger.Error("failed to requeue outbox entry", zap.Error(err))
			}
			continue
		}

		if err := op.store.Remove(entry); err != nil {
			op.logger.Warn("failed to purge delivered outbox entry", zap.Error(err))
		}
	}
	return nil
}

// Size returns the number of queued events.
func (op *OutboxProcessor) Size() int {
	if op == nil || op.store == nil {
		return 0
	}
	size, err := op.store.Size()
	if err != nil {
		return 0
	}
	return size
}

// deliver appends before publishing. Append ignores known ids, so a retry
// after a failed publish does not duplicate the log entry.
func (op *OutboxProcessor) deliver(ctx context.Context, event domain.Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if op.activity != nil {
		if err := op.activity.Append(ctx, event); err != nil {
			return fmt.Errorf("append activity: %w", err)
		}
	}
	if op.publisher != nil {
		if err := op.publisher.Publish(ctx, event); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}
	return nil
}
