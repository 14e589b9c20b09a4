package domain

import "time"

type WebhookTaskStatus string

const (
	WebhookPending   WebhookTaskStatus = "pending"
	WebhookSending   WebhookTaskStatus = "sending"
	WebhookDelivered WebhookTaskStatus = "delivered"
	WebhookExhausted WebhookTaskStatus = "exhausted"
)

// WebhookTask is an outbox row: inserted in the same transaction as the order
// status write and drained by the worker.
type WebhookTask struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	PublicID      string            `gorm:"size:36;not null;uniqueIndex" json:"public_id"`
	OrderID       uint              `gorm:"not null;index" json:"order_id"`
	Payload       []byte            `gorm:"type:bytes;not null" json:"-"`
	Attempts      int               `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time         `gorm:"not null;index:idx_webhook_due" json:"next_attempt_at"`
	Status        WebhookTaskStatus `gorm:"size:20;not null;default:pending;index:idx_webhook_due" json:"status"`
	LastError     string            `gorm:"size:512" json:"last_error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
