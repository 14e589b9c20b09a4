package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"transport-pricing-service/internal/domain"
	"transport-pricing-service/internal/observability"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderVersionConflict = errors.New("order modified concurrently")
)

type OrderFilter struct {
	Status    *domain.OrderStatus
	CreatedBy *uint
	Limit     int
	Offset    int
}

type OrderRepository interface {
	// WithTx returns a repository bound to tx so status writes and outbox
	// inserts can share one transaction.
	WithTx(tx *gorm.DB) OrderRepository
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uint) (*domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
	// Update persists the order guarded by its version: the write only lands
	// if no concurrent writer bumped the version first.
	Update(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, id uint) error
}

type GormOrderRepository struct{ db *gorm.DB }

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) WithTx(tx *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: tx}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "order", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "order", "create", "success")
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uint) (*domain.Order, error) {
	var order domain.Order
	err := r.db.WithContext(ctx).Preload("Lead").First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "order", "find_by_id", "not_found")
			return nil, ErrOrderNotFound
		}
		observability.RecordRepositoryOperation(ctx, "order", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "order", "find_by_id", "success")
	return &order, nil
}

func (r *GormOrderRepository) List(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	q := r.db.WithContext(ctx).Preload("Lead").Order("id asc")
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.CreatedBy != nil {
		q = q.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var orders []domain.Order
	if err := q.Find(&orders).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "order", "list", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "order", "list", "success")
	return orders, nil
}

func (r *GormOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	res := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]any{
			"status":      order.Status,
			"base_price":  order.BasePrice,
			"final_price": order.FinalPrice,
			"notes":       order.Notes,
			"version":     order.Version + 1,
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "order", "update", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "order", "update", "conflict")
		return ErrOrderVersionConflict
	}
	order.Version++
	observability.RecordRepositoryOperation(ctx, "order", "update", "success")
	return nil
}

func (r *GormOrderRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.Order{}, id)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "order", "delete", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "order", "delete", "not_found")
		return ErrOrderNotFound
	}
	observability.RecordRepositoryOperation(ctx, "order", "delete", "success")
	return nil
}
