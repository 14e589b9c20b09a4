package database

import (
	"transport-pricing-service/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Lead{},
		&domain.Order{},
		&domain.WebhookTask{},
		&domain.AuditLog{},
	)
}
