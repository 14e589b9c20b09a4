package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"transport-pricing-service/internal/domain"
	"transport-pricing-service/internal/repository"
)

var ErrForbidden = errors.New("principal does not own this resource")

type WebhookPayload struct {
	OrderID    uint               `json:"order_id"`
	FinalPrice float64            `json:"final_price"`
	Status     domain.OrderStatus `json:"status"`
}

type Actor struct {
	UserID uint
	Role   domain.UserRole
}

func (a Actor) isAdmin() bool { return a.Role == domain.RoleAdmin }

type CreateOrderInput struct {
	LeadID    uint
	BasePrice float64
	Notes     string
}

type UpdateOrderInput struct {
	Status     *domain.OrderStatus
	BasePrice  *float64
	FinalPrice *float64
	Notes      *string
}

type OrderService struct {
	db     *gorm.DB
	orders repository.OrderRepository
	leads  repository.LeadRepository
	tasks  repository.WebhookTaskRepository
	audit  repository.AuditLogRepository
	logger *slog.Logger
}

func NewOrderService(
	db *gorm.DB,
	orders repository.OrderRepository,
	leads repository.LeadRepository,
	tasks repository.WebhookTaskRepository,
	audit repository.AuditLogRepository,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{db: db, orders: orders, leads: leads, tasks: tasks, audit: audit, logger: logger}
}

func (s *OrderService) CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (*domain.Order, error) {
	lead, err := s.leads.FindByID(ctx, in.LeadID)
	if err != nil {
		return nil, err
	}
	if !actor.isAdmin() && lead.CreatedBy != actor.UserID {
		return nil, ErrForbidden
	}
	order := &domain.Order{
		LeadID:    in.LeadID,
		Status:    domain.OrderDraft,
		BasePrice: in.BasePrice,
		Notes:     in.Notes,
		CreatedBy: actor.UserID,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, domain.AuditCreateOrder, order.ID, "")
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, actor Actor, id uint) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.isAdmin() && order.CreatedBy != actor.UserID {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, actor Actor, status *domain.OrderStatus, limit, offset int) ([]domain.Order, error) {
	filter := repository.OrderFilter{Status: status, Limit: limit, Offset: offset}
	if !actor.isAdmin() {
		uid := actor.UserID
		filter.CreatedBy = &uid
	}
	return s.orders.List(ctx, filter)
}

// UpdateOrder applies a manual mutation. Status changes go through the
// transition table; entering quoted or booked enqueues the webhook task in
// the same transaction as the status write.
func (s *OrderService) UpdateOrder(ctx context.Context, actor Actor, id uint, in UpdateOrderInput) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if in.BasePrice != nil {
		order.BasePrice = *in.BasePrice
	}
	if in.FinalPrice != nil {
		order.FinalPrice = in.FinalPrice
	}
	if in.Notes != nil {
		order.Notes = *in.Notes
	}

	statusChanged := false
	if in.Status != nil && *in.Status != order.Status {
		if err := order.TransitionTo(*in.Status); err != nil {
			return nil, err
		}
		statusChanged = true
	}

	if err := s.persistWithOutbox(ctx, order, statusChanged && order.Status.NotifiesWebhook()); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, domain.AuditUpdateOrder, order.ID, string(order.Status))
	return order, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, actor Actor, id uint) error {
	if _, err := s.GetOrder(ctx, actor, id); err != nil {
		return err
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, domain.AuditDeleteOrder, id, "")
	return nil
}

// Quote transitions the order to quoted with the given final price. Called by
// the reprice runner; idempotent when the order is already quoted at the same
// price (no version bump, no duplicate webhook).
func (s *OrderService) Quote(ctx context.Context, order *domain.Order, finalPrice float64) (*domain.Order, error) {
	if order.Status == domain.OrderQuoted && order.FinalPrice != nil && *order.FinalPrice == finalPrice {
		return order, nil
	}
	order.FinalPrice = &finalPrice
	if order.Status != domain.OrderQuoted {
		if err := order.TransitionTo(domain.OrderQuoted); err != nil {
			return nil, err
		}
	}
	if err := s.persistWithOutbox(ctx, order, true); err != nil {
		return nil, err
	}
	return order, nil
}

// persistWithOutbox is the transactional-outbox write: the optimistic status
// update and the webhook task insert commit or roll back together.
func (s *OrderService) persistWithOutbox(ctx context.Context, order *domain.Order, enqueue bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Update(ctx, order); err != nil {
			return err
		}
		if !enqueue {
			return nil
		}
		task, err := buildWebhookTask(order)
		if err != nil {
			return err
		}
		return s.tasks.WithTx(tx).Enqueue(ctx, task)
	})
}

func buildWebhookTask(order *domain.Order) (*domain.WebhookTask, error) {
	finalPrice := order.BasePrice
	if order.FinalPrice != nil {
		finalPrice = *order.FinalPrice
	}
	payload, err := json.Marshal(WebhookPayload{
		OrderID:    order.ID,
		FinalPrice: finalPrice,
		Status:     order.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("encode webhook payload: %w", err)
	}
	return &domain.WebhookTask{
		OrderID:       order.ID,
		Payload:       payload,
		NextAttemptAt: time.Now().UTC(),
	}, nil
}

func (s *OrderService) recordAudit(ctx context.Context, actor Actor, action domain.AuditAction, targetID uint, detail string) {
	entry := &domain.AuditLog{
		ActorID:    actor.UserID,
		Action:     action,
		TargetType: "order",
		TargetID:   targetID,
		Detail:     detail,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Error("audit entry failed", "action", string(action), "target_id", targetID, "error", err)
	}
}
