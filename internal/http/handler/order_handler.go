package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"transport-pricing-service/internal/domain"
	"transport-pricing-service/internal/http/response"
	"transport-pricing-service/internal/jobs"
	"transport-pricing-service/internal/service"
)

type OrderHandler struct {
	orders       *service.OrderService
	repriceQueue jobs.RepriceQueue
}

func NewOrderHandler(orders *service.OrderService, repriceQueue jobs.RepriceQueue) *OrderHandler {
	return &OrderHandler{orders: orders, repriceQueue: repriceQueue}
}

type createOrderRequest struct {
	LeadID    uint    `json:"lead_id"`
	BasePrice float64 `json:"base_price"`
	Notes     string  `json:"notes"`
}

type updateOrderRequest struct {
	Status     *string  `json:"status"`
	BasePrice  *float64 `json:"base_price"`
	FinalPrice *float64 `json:"final_price"`
	Notes      *string  `json:"notes"`
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing principal", nil)
		return
	}
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	var problems []string
	if req.LeadID == 0 {
		problems = append(problems, "lead_id is required")
	}
	if req.BasePrice < 0 {
		problems = append(problems, "base_price must not be negative")
	}
	if len(problems) > 0 {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "validation failed", problems)
		return
	}
	order, err := h.orders.CreateOrder(r.Context(), actor, service.CreateOrderInput{
		LeadID:    req.LeadID,
		BasePrice: req.BasePrice,
		Notes:     strings.TrimSpace(req.Notes),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusCreated, order)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing principal", nil)
		return
	}
	id, err := pathID(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	order, err := h.orders.GetOrder(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, order)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing principal", nil)
		return
	}
	var status *domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.OrderStatus(raw)
		if !s.Valid() {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "unknown status filter", nil)
			return
		}
		status = &s
	}
	limit, offset := pagination(r)
	orders, err := h.orders.ListOrders(r.Context(), actor, status, limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, orders)
}

func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing principal", nil)
		return
	}
	id, err := pathID(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	input := service.UpdateOrderInput{
		BasePrice:  req.BasePrice,
		FinalPrice: req.FinalPrice,
		Notes:      req.Notes,
	}
	if req.Status != nil {
		s := domain.OrderStatus(*req.Status)
		if !s.Valid() {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "unknown status", nil)
			return
		}
		input.Status = &s
	}
	order, err := h.orders.UpdateOrder(r.Context(), actor, id, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, order)
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing principal", nil)
		return
	}
	id, err := pathID(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	if err := h.orders.DeleteOrder(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

// Reprice enqueues a background reprice job and returns immediately. The
// recompute happens in the worker; callers poll the order for the result.
func (h *OrderHandler) Reprice(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing principal", nil)
		return
	}
	id, err := pathID(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	// Ownership and existence are checked up front so a 202 always refers to a
	// real, visible order.
	if _, err := h.orders.GetOrder(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.repriceQueue.Enqueue(r.Context(), id); err != nil {
		response.Error(w, r, http.StatusServiceUnavailable, "INTERNAL", "reprice queue unavailable", nil)
		return
	}
	response.JSON(w, r, http.StatusAccepted, map[string]string{"status": "queued"})
}
