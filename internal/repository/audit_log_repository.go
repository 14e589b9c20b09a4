package repository

import (
	"context"

	"gorm.io/gorm"

	"transport-pricing-service/internal/domain"
	"transport-pricing-service/internal/observability"
)

type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

type GormAuditLogRepository struct{ db *gorm.DB }

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

func (r *GormAuditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "audit_log", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "audit_log", "create", "success")
	return nil
}
