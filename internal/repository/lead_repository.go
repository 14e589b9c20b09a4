package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"transport-pricing-service/internal/domain"
	"transport-pricing-service/internal/observability"
)

var ErrLeadNotFound = errors.New("lead not found")

type LeadFilter struct {
	CreatedBy *uint
	Limit     int
	Offset    int
}

type LeadRepository interface {
	Create(ctx context.Context, lead *domain.Lead) error
	FindByID(ctx context.Context, id uint) (*domain.Lead, error)
	List(ctx context.Context, filter LeadFilter) ([]domain.Lead, error)
}

type GormLeadRepository struct{ db *gorm.DB }

func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &GormLeadRepository{db: db}
}

func (r *GormLeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	if err := r.db.WithContext(ctx).Create(lead).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "lead", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "lead", "create", "success")
	return nil
}

func (r *GormLeadRepository) FindByID(ctx context.Context, id uint) (*domain.Lead, error) {
	var lead domain.Lead
	err := r.db.WithContext(ctx).First(&lead, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "lead", "find_by_id", "not_found")
			return nil, ErrLeadNotFound
		}
		observability.RecordRepositoryOperation(ctx, "lead", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "lead", "find_by_id", "success")
	return &lead, nil
}

func (r *GormLeadRepository) List(ctx context.Context, filter LeadFilter) ([]domain.Lead, error) {
	q := r.db.WithContext(ctx).Order("id asc")
	if filter.CreatedBy != nil {
		q = q.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var leads []domain.Lead
	if err := q.Find(&leads).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "lead", "list", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "lead", "list", "success")
	return leads, nil
}
