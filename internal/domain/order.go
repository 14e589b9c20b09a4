package domain

import (
	"errors"
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderDraft     OrderStatus = "draft"
	OrderQuoted    OrderStatus = "quoted"
	OrderBooked    OrderStatus = "booked"
	OrderCancelled OrderStatus = "cancelled"
)

var ErrInvalidTransition = errors.New("invalid order status transition")

// orderTransitions is the authoritative transition table. Anything not listed
// here is illegal; booked and cancelled are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderDraft:     {OrderQuoted, OrderCancelled},
	OrderQuoted:    {OrderBooked, OrderCancelled},
	OrderBooked:    {},
	OrderCancelled: {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// NotifiesWebhook reports whether entering the status emits a webhook task.
func (s OrderStatus) NotifiesWebhook() bool {
	return s == OrderQuoted || s == OrderBooked
}

type Order struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	LeadID     uint        `gorm:"not null;index" json:"lead_id"`
	Lead       Lead        `gorm:"foreignKey:LeadID" json:"lead,omitempty"`
	Status     OrderStatus `gorm:"size:20;not null;default:draft;index" json:"status"`
	BasePrice  float64     `gorm:"not null" json:"base_price"`
	FinalPrice *float64    `json:"final_price"`
	Notes      string      `json:"notes,omitempty"`
	CreatedBy  uint        `gorm:"not null;index" json:"created_by"`
	Version    int64       `gorm:"not null;default:1" json:"-"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func (o *Order) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[o.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo mutates the order status after validating the transition table
// and its preconditions. The order is left untouched on error.
func (o *Order) TransitionTo(next OrderStatus) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}
	if !o.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	if next == OrderQuoted && o.FinalPrice == nil {
		return fmt.Errorf("%w: %s -> %s requires a computed final price", ErrInvalidTransition, o.Status, next)
	}
	o.Status = next
	return nil
}
