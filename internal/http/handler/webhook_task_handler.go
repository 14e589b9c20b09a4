package handler

import (
	"net/http"

	"transport-pricing-service/internal/domain"
	"transport-pricing-service/internal/http/response"
	"transport-pricing-service/internal/repository"
)

// WebhookTaskHandler exposes outbox depth for operators watching delivery
// health.
type WebhookTaskHandler struct {
	tasks repository.WebhookTaskRepository
}

func NewWebhookTaskHandler(tasks repository.WebhookTaskRepository) *WebhookTaskHandler {
	return &WebhookTaskHandler{tasks: tasks}
}

func (h *WebhookTaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing principal", nil)
		return
	}
	if actor.Role != domain.RoleAdmin {
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "admin role required", nil)
		return
	}

	stats := make(map[string]int64, 4)
	for _, status := range []domain.WebhookTaskStatus{
		domain.WebhookPending,
		domain.WebhookSending,
		domain.WebhookDelivered,
		domain.WebhookExhausted,
	} {
		n, err := h.tasks.CountByStatus(r.Context(), status)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		stats[string(status)] = n
	}
	response.JSON(w, r, http.StatusOK, stats)
}
