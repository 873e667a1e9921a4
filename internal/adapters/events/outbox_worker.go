package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/trading-signals/internal/ports"
)

type OutboxWorkerConfig struct {
	Interval   time.Duration
	BatchSize  int
	ClaimTTL   time.Duration
	MaxRetries int
}

// OutboxWorker relays outbox rows written alongside account changes
// (registrations, entitlement grants) to the event publisher.
type OutboxWorker struct {
	logger    *slog.Logger
	outbox    ports.OutboxRepository
	publisher ports.EventPublisher
	cfg       OutboxWorkerConfig
	nowFn     func() time.Time
}

func NewOutboxWorker(logger *slog.Logger, outbox ports.OutboxRepository, publisher ports.EventPublisher, cfg OutboxWorkerConfig) *OutboxWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &OutboxWorker{
		logger:    logger,
		outbox:    outbox,
		publisher: publisher,
		cfg:       cfg,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the periodic outbox publish loop until context cancellation.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "outbox_process_once",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// BatchResult counts what one pass did with the rows it claimed.
type BatchResult struct {
	Claimed      int
	Published    int
	Failed       int
	DeadLettered int
}

func (w *OutboxWorker) ProcessOnce(ctx context.Context) (BatchResult, error) {
	claimToken := uuid.NewString()
	records, err := w.outbox.ClaimUnpublished(ctx, w.cfg.BatchSize, claimToken, w.nowFn().Add(w.cfg.ClaimTTL))
	if err != nil {
		return BatchResult{}, err
	}

	res := BatchResult{Claimed: len(records)}
	for _, rec := range records {
		now := w.nowFn()
		if rec.RetryCount >= w.cfg.MaxRetries {
			res.DeadLettered++
			w.settle(ctx, "mark_dead_lettered", rec, w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, "retry threshold reached before publish", now))
			continue
		}

		pubErr := w.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey)
		if pubErr == nil {
			res.Published++
			w.settle(ctx, "mark_published", rec, w.outbox.MarkPublished(ctx, rec.OutboxID, claimToken, now))
			continue
		}

		res.Failed++
		attempts := rec.RetryCount + 1
		if attempts >= w.cfg.MaxRetries {
			res.DeadLettered++
			w.logger.ErrorContext(ctx, "outbox message moved to dlq",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "publish_event",
				"outcome", "failure",
				"outbox_id", rec.OutboxID,
				"event_type", rec.EventType,
				"retry_count", attempts,
				"error", pubErr,
			)
			w.settle(ctx, "mark_dead_lettered", rec, w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, pubErr.Error(), now))
			continue
		}

		w.logger.WarnContext(ctx, "outbox publish failed; retry scheduled",
			"module", "events.outbox_worker",
			"layer", "adapter",
			"operation", "publish_event",
			"outcome", "failure",
			"outbox_id", rec.OutboxID,
			"event_type", rec.EventType,
			"retry_count", attempts,
			"error", pubErr,
		)
		w.settle(ctx, "mark_failed", rec, w.outbox.MarkFailed(ctx, rec.OutboxID, claimToken, pubErr.Error(), now))
	}

	if res.Claimed > 0 {
		w.logger.InfoContext(ctx, "outbox batch processed",
			"module", "events.outbox_worker",
			"layer", "adapter",
			"operation", "outbox_process_once",
			"outcome", "success",
			"batch_size", res.Claimed,
			"published_count", res.Published,
			"failed_count", res.Failed,
			"dead_lettered_count", res.DeadLettered,
		)
	}
	return res, nil
}

// settle logs a failed status write. The lease lapses on its own and the row
// is picked up again.
func (w *OutboxWorker) settle(ctx context.Context, operation string, rec ports.OutboxRecord, err error) {
	if err == nil {
		return
	}
	w.logger.WarnContext(ctx, "outbox status update failed",
		"module", "events.outbox_worker",
		"layer", "adapter",
		"operation", operation,
		"outcome", "failure",
		"outbox_id", rec.OutboxID,
		"error", err,
	)
}
