package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"transport-pricing-service/internal/database"
	"transport-pricing-service/internal/domain"
	"transport-pricing-service/internal/repository"
)

func newOrderService(t *testing.T) (*OrderService, *gorm.DB) {
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
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewOrderService(
		db,
		repository.NewOrderRepository(db),
		repository.NewLeadRepository(db),
		repository.NewWebhookTaskRepository(db),
		repository.NewAuditLogRepository(db),
		logger,
	)
	return svc, db
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

func countTasks(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.WebhookTask{}).Count(&n).Error; err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	return n
}

func TestCreateOrderStartsAsDraft(t *testing.T) {
	svc, db := newOrderService(t)
	ctx := context.Background()
	lead := seedLead(t, db, 1)
	actor := Actor{UserID: 1, Role: domain.RoleAgent}

	order, err := svc.CreateOrder(ctx, actor, CreateOrderInput{LeadID: lead.ID, BasePrice: 100})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.Status != domain.OrderDraft {
		t.Fatalf("status = %s, want draft", order.Status)
	}
	if n := countTasks(t, db); n != 0 {
		t.Fatalf("draft creation enqueued %d webhook tasks, want 0", n)
	}

	var entries int64
	if err := db.Model(&domain.AuditLog{}).Where("action = ?", domain.AuditCreateOrder).Count(&entries).Error; err != nil {
		t.Fatalf("count audit: %v", err)
	}
	if entries != 1 {
		t.Fatalf("audit entries = %d, want 1", entries)
	}
}

func TestCreateOrderForeignLeadForbidden(t *testing.T) {
	svc, db := newOrderService(t)
	lead := seedLead(t, db, 1)

	_, err := svc.CreateOrder(context.Background(), Actor{UserID: 2, Role: domain.RoleAgent}, CreateOrderInput{LeadID: lead.ID, BasePrice: 100})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	// Admins may act on anyone's lead.
	if _, err := svc.CreateOrder(context.Background(), Actor{UserID: 2, Role: domain.RoleAdmin}, CreateOrderInput{LeadID: lead.ID, BasePrice: 100}); err != nil {
		t.Fatalf("admin create: %v", err)
	}
}

func TestUpdateOrderStatusEnqueuesWebhookTask(t *testing.T) {
	svc, db := newOrderService(t)
	ctx := context.Background()
	lead := seedLead(t, db, 1)
	actor := Actor{UserID: 1, Role: domain.RoleAgent}

	order, err := svc.CreateOrder(ctx, actor, CreateOrderInput{LeadID: lead.ID, BasePrice: 100})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	price := 230.0
	quoted := domain.OrderQuoted
	updated, err := svc.UpdateOrder(ctx, actor, order.ID, UpdateOrderInput{Status: &quoted, FinalPrice: &price})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.OrderQuoted {
		t.Fatalf("status = %s, want quoted", updated.Status)
	}
	if n := countTasks(t, db); n != 1 {
		t.Fatalf("webhook tasks = %d, want exactly 1", n)
	}

	var task domain.WebhookTask
	if err := db.First(&task).Error; err != nil {
		t.Fatalf("load task: %v", err)
	}
	if task.OrderID != order.ID {
		t.Fatalf("task order id = %d, want %d", task.OrderID, order.ID)
	}
	want := fmt.Sprintf(`{"order_id":%d,"final_price":230,"status":"quoted"}`, order.ID)
	if string(task.Payload) != want {
		t.Fatalf("payload = %s, want %s", task.Payload, want)
	}

	// A non-status update must not enqueue again.
	notes := "call before pickup"
	if _, err := svc.UpdateOrder(ctx, actor, order.ID, UpdateOrderInput{Notes: &notes}); err != nil {
		t.Fatalf("notes update: %v", err)
	}
	if n := countTasks(t, db); n != 1 {
		t.Fatalf("webhook tasks after notes update = %d, want 1", n)
	}
}

func TestUpdateOrderRejectsInvalidTransition(t *testing.T) {
	svc, db := newOrderService(t)
	ctx := context.Background()
	lead := seedLead(t, db, 1)
	actor := Actor{UserID: 1, Role: domain.RoleAgent}

	order, err := svc.CreateOrder(ctx, actor, CreateOrderInput{LeadID: lead.ID, BasePrice: 100})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	booked := domain.OrderBooked
	if _, err := svc.UpdateOrder(ctx, actor, order.ID, UpdateOrderInput{Status: &booked}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("draft->booked err = %v, want ErrInvalidTransition", err)
	}
	if n := countTasks(t, db); n != 0 {
		t.Fatalf("rejected transition enqueued %d tasks, want 0", n)
	}
}

func TestQuoteIsIdempotent(t *testing.T) {
	svc, db := newOrderService(t)
	ctx := context.Background()
	lead := seedLead(t, db, 1)
	actor := Actor{UserID: 1, Role: domain.RoleAgent}

	order, err := svc.CreateOrder(ctx, actor, CreateOrderInput{LeadID: lead.ID, BasePrice: 100})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	quoted, err := svc.Quote(ctx, order, 230)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quoted.Status != domain.OrderQuoted || quoted.FinalPrice == nil || *quoted.FinalPrice != 230 {
		t.Fatalf("after quote: %+v", quoted)
	}
	if n := countTasks(t, db); n != 1 {
		t.Fatalf("tasks after quote = %d, want 1", n)
	}
	version := quoted.Version

	// Same price again: no write, no second task.
	again, err := svc.Quote(ctx, quoted, 230)
	if err != nil {
		t.Fatalf("requote: %v", err)
	}
	if again.Version != version {
		t.Fatalf("version bumped on no-op requote: %d -> %d", version, again.Version)
	}
	if n := countTasks(t, db); n != 1 {
		t.Fatalf("tasks after no-op requote = %d, want 1", n)
	}

	// New price on an already quoted order: updates in place, one more task.
	if _, err := svc.Quote(ctx, again, 250); err != nil {
		t.Fatalf("requote new price: %v", err)
	}
	if n := countTasks(t, db); n != 2 {
		t.Fatalf("tasks after repriced quote = %d, want 2", n)
	}
}

func TestListOrdersScopedToAgent(t *testing.T) {
	svc, db := newOrderService(t)
	ctx := context.Background()
	mine := seedLead(t, db, 1)
	theirs := seedLead(t, db, 2)

	if _, err := svc.CreateOrder(ctx, Actor{UserID: 1, Role: domain.RoleAgent}, CreateOrderInput{LeadID: mine.ID, BasePrice: 10}); err != nil {
		t.Fatalf("create mine: %v", err)
	}
	if _, err := svc.CreateOrder(ctx, Actor{UserID: 2, Role: domain.RoleAgent}, CreateOrderInput{LeadID: theirs.ID, BasePrice: 20}); err != nil {
		t.Fatalf("create theirs: %v", err)
	}

	orders, err := svc.ListOrders(ctx, Actor{UserID: 1, Role: domain.RoleAgent}, nil, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 1 || orders[0].CreatedBy != 1 {
		t.Fatalf("agent sees %d orders: %+v", len(orders), orders)
	}

	all, err := svc.ListOrders(ctx, Actor{UserID: 9, Role: domain.RoleAdmin}, nil, 0, 0)
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("admin sees %d orders, want 2", len(all))
	}
}

func TestDeleteOrderOwnership(t *testing.T) {
	svc, db := newOrderService(t)
	ctx := context.Background()
	lead := seedLead(t, db, 1)

	order, err := svc.CreateOrder(ctx, Actor{UserID: 1, Role: domain.RoleAgent}, CreateOrderInput{LeadID: lead.ID, BasePrice: 100})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.DeleteOrder(ctx, Actor{UserID: 2, Role: domain.RoleAgent}, order.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign delete err = %v, want ErrForbidden", err)
	}
	if err := svc.DeleteOrder(ctx, Actor{UserID: 1, Role: domain.RoleAgent}, order.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetOrder(ctx, Actor{UserID: 1, Role: domain.RoleAgent}, order.ID); !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("get after delete err = %v, want ErrOrderNotFound", err)
	}
}
