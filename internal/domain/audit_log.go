package domain

import "time"

type AuditAction string

const (
	AuditCreateLead   AuditAction = "create_lead"
	AuditCreateOrder  AuditAction = "create_order"
	AuditUpdateOrder  AuditAction = "update_order"
	AuditDeleteOrder  AuditAction = "delete_order"
	AuditRepriceOrder AuditAction = "reprice_order"
)

type AuditLog struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	ActorID    uint        `gorm:"not null;index" json:"actor_id"`
	Action     AuditAction `gorm:"size:40;not null;index" json:"action"`
	TargetType string      `gorm:"size:40;not null" json:"target_type"`
	TargetID   uint        `gorm:"not null" json:"target_id"`
	Detail     string      `gorm:"size:512" json:"detail,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
