package jobs

import (
	"context"
	"log/slog"
	"time"

	"transport-pricing-service/internal/domain"
	"transport-pricing-service/internal/observability"
	"transport-pricing-service/internal/repository"
	"transport-pricing-service/internal/webhook"
)

// staleSendingAfter is how long a task may sit in sending before we assume the
// worker that claimed it died and hand it back to pending.
const staleSendingAfter = 5 * time.Minute

// WebhookDispatcher drains the outbox: it claims due tasks, attempts delivery,
// and either reschedules with exponential backoff or marks the task exhausted
// once the attempt budget is spent.
type WebhookDispatcher struct {
	tasks       repository.WebhookTaskRepository
	deliverer   *webhook.Deliverer
	maxAttempts int
	pollEvery   time.Duration
	batchSize   int
	logger      *slog.Logger
}

func NewWebhookDispatcher(
	tasks repository.WebhookTaskRepository,
	deliverer *webhook.Deliverer,
	maxAttempts int,
	pollEvery time.Duration,
	batchSize int,
	logger *slog.Logger,
) *WebhookDispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if pollEvery <= 0 {
		pollEvery = time.Second
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &WebhookDispatcher{
		tasks:       tasks,
		deliverer:   deliverer,
		maxAttempts: maxAttempts,
		pollEvery:   pollEvery,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Run polls until the context is cancelled.
func (d *WebhookDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollEvery)
	defer ticker.Stop()

	d.logger.Info("webhook dispatcher started", "poll_every", d.pollEvery.String(), "batch_size", d.batchSize)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("webhook dispatcher stopped")
			return
		case <-ticker.C:
			if err := d.RunOnce(ctx); err != nil {
				d.logger.Error("webhook dispatch cycle failed", "error", err)
			}
		}
	}
}

// RunOnce processes one batch of due tasks. Exposed for tests and for the
// one-shot drain on shutdown.
func (d *WebhookDispatcher) RunOnce(ctx context.Context) error {
	if requeued, err := d.tasks.RequeueStale(ctx, time.Now().UTC().Add(-staleSendingAfter)); err != nil {
		d.logger.Warn("stale webhook requeue failed", "error", err)
	} else if requeued > 0 {
		d.logger.Warn("requeued stale webhook tasks", "count", requeued)
	}

	claimed, err := d.tasks.ClaimDue(ctx, time.Now().UTC(), d.batchSize)
	if err != nil {
		return err
	}
	for i := range claimed {
		d.dispatch(ctx, &claimed[i])
	}
	return nil
}

func (d *WebhookDispatcher) dispatch(ctx context.Context, task *domain.WebhookTask) {
	attempt := task.Attempts + 1
	err := d.deliverer.Deliver(ctx, task.Payload)
	if err == nil {
		observability.RecordWebhookDelivery(ctx, "delivered")
		if markErr := d.tasks.MarkDelivered(ctx, task.ID, attempt); markErr != nil {
			d.logger.Error("failed to mark webhook task delivered", "task_id", task.ID, "error", markErr)
		}
		d.logger.Info("webhook delivered", "task_id", task.ID, "order_id", task.OrderID, "attempt", attempt)
		return
	}

	if attempt >= d.maxAttempts {
		observability.RecordWebhookDelivery(ctx, "exhausted")
		if markErr := d.tasks.MarkExhausted(ctx, task.ID, attempt, err.Error()); markErr != nil {
			d.logger.Error("failed to mark webhook task exhausted", "task_id", task.ID, "error", markErr)
		}
		d.logger.Error("webhook delivery exhausted", "task_id", task.ID, "order_id", task.OrderID, "attempts", attempt, "error", err)
		return
	}

	observability.RecordWebhookDelivery(ctx, "retry")
	next := time.Now().UTC().Add(webhook.Backoff(attempt))
	if markErr := d.tasks.Reschedule(ctx, task.ID, attempt, next, err.Error()); markErr != nil {
		d.logger.Error("failed to reschedule webhook task", "task_id", task.ID, "error", markErr)
	}
	d.logger.Warn("webhook delivery failed, rescheduled",
		"task_id", task.ID, "order_id", task.OrderID, "attempt", attempt, "next_attempt_at", next, "error", err)
}
