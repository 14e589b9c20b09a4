package domain

import (
	"errors"
	"testing"
)

func TestOrderTransitionTable(t *testing.T) {
	price := 150.0
	cases := []struct {
		name  string
		from  OrderStatus
		to    OrderStatus
		price *float64
		ok    bool
	}{
		{"draft to quoted with price", OrderDraft, OrderQuoted, &price, true},
		{"draft to quoted without price", OrderDraft, OrderQuoted, nil, false},
		{"draft to cancelled", OrderDraft, OrderCancelled, nil, true},
		{"draft to booked", OrderDraft, OrderBooked, nil, false},
		{"quoted to booked", OrderQuoted, OrderBooked, &price, true},
		{"quoted to cancelled", OrderQuoted, OrderCancelled, &price, true},
		{"quoted to draft", OrderQuoted, OrderDraft, &price, false},
		{"booked is terminal", OrderBooked, OrderCancelled, &price, false},
		{"cancelled is terminal", OrderCancelled, OrderDraft, nil, false},
		{"unknown target", OrderDraft, OrderStatus("delivered"), nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := Order{Status: tc.from, FinalPrice: tc.price}
			err := order.TransitionTo(tc.to)
			if tc.ok && err != nil {
				t.Fatalf("expected transition %s -> %s to succeed: %v", tc.from, tc.to, err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected transition %s -> %s to fail", tc.from, tc.to)
				}
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("error should wrap ErrInvalidTransition, got %v", err)
				}
				if order.Status != tc.from {
					t.Fatalf("order mutated on failed transition: %s", order.Status)
				}
			}
		})
	}
}

func TestNotifiesWebhook(t *testing.T) {
	if !OrderQuoted.NotifiesWebhook() || !OrderBooked.NotifiesWebhook() {
		t.Fatal("quoted and booked must notify")
	}
	if OrderDraft.NotifiesWebhook() || OrderCancelled.NotifiesWebhook() {
		t.Fatal("draft and cancelled must not notify")
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []OrderStatus{OrderDraft, OrderQuoted, OrderBooked, OrderCancelled} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if OrderStatus("delivered").Valid() {
		t.Error("delivered is not a known status")
	}
}
