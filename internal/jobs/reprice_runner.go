package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"transport-pricing-service/internal/domain"
	"transport-pricing-service/internal/pricing"
	"transport-pricing-service/internal/repository"
	"transport-pricing-service/internal/service"
)

const dequeueTimeout = 5 * time.Second

// RepriceRunner consumes the reprice queue, recomputes a quote for each order,
// and applies it. A second run for an unchanged order is a no-op: the price
// cache returns the same quote and Quote skips the write.
type RepriceRunner struct {
	queue      RepriceQueue
	orders     repository.OrderRepository
	orderSvc   *service.OrderService
	calculator *pricing.CachedCalculator
	audit      repository.AuditLogRepository
	logger     *slog.Logger
}

func NewRepriceRunner(
	queue RepriceQueue,
	orders repository.OrderRepository,
	orderSvc *service.OrderService,
	calculator *pricing.CachedCalculator,
	audit repository.AuditLogRepository,
	logger *slog.Logger,
) *RepriceRunner {
	return &RepriceRunner{
		queue:      queue,
		orders:     orders,
		orderSvc:   orderSvc,
		calculator: calculator,
		audit:      audit,
		logger:     logger,
	}
}

// Run consumes jobs until the context is cancelled. Job failures are logged
// and dropped, not retried: a stale or deleted order is not worth blocking
// the queue for, and callers can re-enqueue.
func (r *RepriceRunner) Run(ctx context.Context) {
	r.logger.Info("reprice runner started")
	for {
		if ctx.Err() != nil {
			r.logger.Info("reprice runner stopped")
			return
		}
		orderID, ok, err := r.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("reprice runner stopped")
				return
			}
			r.logger.Error("reprice dequeue failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}
		if err := r.Reprice(ctx, orderID); err != nil {
			r.logger.Error("reprice job failed", "order_id", orderID, "error", err)
		}
	}
}

// Reprice recomputes the quote for one order from its lead attributes and
// transitions it to quoted.
func (r *RepriceRunner) Reprice(ctx context.Context, orderID uint) error {
	order, err := r.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			r.logger.Warn("reprice skipped, order gone", "order_id", orderID)
			return nil
		}
		return err
	}

	quote := r.calculator.Calc(ctx, pricing.QuoteInput{
		BasePrice:   order.BasePrice,
		DistanceKM:  order.Lead.DistanceKM,
		VehicleType: string(order.Lead.VehicleType),
		SeasonBonus: 0,
		Operable:    order.Lead.Operable,
	})

	if _, err := r.orderSvc.Quote(ctx, order, quote.FinalPrice); err != nil {
		return err
	}

	entry := &domain.AuditLog{
		ActorID:    order.CreatedBy,
		Action:     domain.AuditRepriceOrder,
		TargetType: "order",
		TargetID:   order.ID,
		Detail:     string(order.Status),
	}
	if err := r.audit.Create(ctx, entry); err != nil {
		r.logger.Error("audit entry failed", "action", string(domain.AuditRepriceOrder), "target_id", order.ID, "error", err)
	}

	r.logger.Info("order repriced", "order_id", order.ID, "final_price", quote.FinalPrice)
	return nil
}
