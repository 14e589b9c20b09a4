package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"transport-pricing-service/internal/domain"
	"transport-pricing-service/internal/observability"
)

var ErrWebhookTaskNotFound = errors.New("webhook task not found")

// WebhookTaskRepository is the outbox. Enqueue happens inside the order
// transaction; the worker claims due tasks and settles them.
type WebhookTaskRepository interface {
	WithTx(tx *gorm.DB) WebhookTaskRepository
	Enqueue(ctx context.Context, task *domain.WebhookTask) error
	// ClaimDue atomically moves up to limit due pending tasks to sending and
	// returns them. A task claimed here is invisible to other workers.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.WebhookTask, error)
	MarkDelivered(ctx context.Context, id uint, attempts int) error
	Reschedule(ctx context.Context, id uint, attempts int, nextAttemptAt time.Time, lastError string) error
	MarkExhausted(ctx context.Context, id uint, attempts int, lastError string) error
	// RequeueStale returns tasks stuck in sending (crashed worker) to pending.
	RequeueStale(ctx context.Context, staleBefore time.Time) (int64, error)
	CountByStatus(ctx context.Context, status domain.WebhookTaskStatus) (int64, error)
}

type GormWebhookTaskRepository struct{ db *gorm.DB }

func NewWebhookTaskRepository(db *gorm.DB) WebhookTaskRepository {
	return &GormWebhookTaskRepository{db: db}
}

func (r *GormWebhookTaskRepository) WithTx(tx *gorm.DB) WebhookTaskRepository {
	return &GormWebhookTaskRepository{db: tx}
}

func (r *GormWebhookTaskRepository) Enqueue(ctx context.Context, task *domain.WebhookTask) error {
	if task.PublicID == "" {
		task.PublicID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = domain.WebhookPending
	}
	if task.NextAttemptAt.IsZero() {
		task.NextAttemptAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "webhook_task", "enqueue", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "webhook_task", "enqueue", "success")
	return nil
}

func (r *GormWebhookTaskRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.WebhookTask, error) {
	var due []domain.WebhookTask
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", domain.WebhookPending, now).
		Order("next_attempt_at asc").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "webhook_task", "claim_due", "error")
		return nil, err
	}

	claimed := make([]domain.WebhookTask, 0, len(due))
	for i := range due {
		// Conditional flip pending->sending: losing a race to another worker
		// simply skips the row.
		res := r.db.WithContext(ctx).Model(&domain.WebhookTask{}).
			Where("id = ? AND status = ?", due[i].ID, domain.WebhookPending).
			Update("status", domain.WebhookSending)
		if res.Error != nil {
			observability.RecordRepositoryOperation(ctx, "webhook_task", "claim_due", "error")
			return claimed, res.Error
		}
		if res.RowsAffected == 1 {
			due[i].Status = domain.WebhookSending
			claimed = append(claimed, due[i])
		}
	}
	observability.RecordRepositoryOperation(ctx, "webhook_task", "claim_due", "success")
	return claimed, nil
}

func (r *GormWebhookTaskRepository) MarkDelivered(ctx context.Context, id uint, attempts int) error {
	return r.settle(ctx, id, map[string]any{
		"status":     domain.WebhookDelivered,
		"attempts":   attempts,
		"last_error": "",
	}, "mark_delivered")
}

func (r *GormWebhookTaskRepository) Reschedule(ctx context.Context, id uint, attempts int, nextAttemptAt time.Time, lastError string) error {
	return r.settle(ctx, id, map[string]any{
		"status":          domain.WebhookPending,
		"attempts":        attempts,
		"next_attempt_at": nextAttemptAt,
		"last_error":      truncateError(lastError),
	}, "reschedule")
}

func (r *GormWebhookTaskRepository) MarkExhausted(ctx context.Context, id uint, attempts int, lastError string) error {
	return r.settle(ctx, id, map[string]any{
		"status":     domain.WebhookExhausted,
		"attempts":   attempts,
		"last_error": truncateError(lastError),
	}, "mark_exhausted")
}

func (r *GormWebhookTaskRepository) settle(ctx context.Context, id uint, updates map[string]any, op string) error {
	res := r.db.WithContext(ctx).Model(&domain.WebhookTask{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "webhook_task", op, "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "webhook_task", op, "not_found")
		return ErrWebhookTaskNotFound
	}
	observability.RecordRepositoryOperation(ctx, "webhook_task", op, "success")
	return nil
}

func (r *GormWebhookTaskRepository) RequeueStale(ctx context.Context, staleBefore time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.WebhookTask{}).
		Where("status = ? AND updated_at < ?", domain.WebhookSending, staleBefore).
		Update("status", domain.WebhookPending)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "webhook_task", "requeue_stale", "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "webhook_task", "requeue_stale", "success")
	return res.RowsAffected, nil
}

func (r *GormWebhookTaskRepository) CountByStatus(ctx context.Context, status domain.WebhookTaskStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.WebhookTask{}).Where("status = ?", status).Count(&n).Error
	return n, err
}

func truncateError(msg string) string {
	if len(msg) > 512 {
		return msg[:512]
	}
	return msg
}
