package repository

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"transport-pricing-service/internal/database"
	"transport-pricing-service/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedLead(t *testing.T, db *gorm.DB, createdBy uint) *domain.Lead {
	t.Helper()
	lead := &domain.Lead{
		Name:        "Jordan Marsh",
		DistanceKM:  50,
		VehicleType: domain.VehicleTruck,
		Operable:    true,
		CreatedBy:   createdBy,
	}
	if err := db.Create(lead).Error; err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	return lead
}

func seedOrder(t *testing.T, db *gorm.DB, lead *domain.Lead, status domain.OrderStatus) *domain.Order {
	t.Helper()
	order := &domain.Order{
		LeadID:    lead.ID,
		Status:    status,
		BasePrice: 100,
		CreatedBy: lead.CreatedBy,
		Version:   1,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}
