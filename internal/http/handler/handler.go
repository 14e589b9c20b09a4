package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"transport-pricing-service/internal/domain"
	"transport-pricing-service/internal/http/middleware"
	"transport-pricing-service/internal/http/response"
	"transport-pricing-service/internal/repository"
	"transport-pricing-service/internal/service"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

func pathID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("path id must be a positive integer")
	}
	return uint(id), nil
}

func actorFrom(r *http.Request) (service.Actor, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{UserID: p.UserID, Role: p.Role}, true
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// writeServiceError maps domain and service errors onto the response envelope.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, repository.ErrLeadNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "lead not found", nil)
	case errors.Is(err, service.ErrForbidden):
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "you do not have access to this resource", nil)
	case errors.Is(err, domain.ErrInvalidTransition):
		response.Error(w, r, http.StatusUnprocessableEntity, "INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, repository.ErrOrderVersionConflict):
		response.Error(w, r, http.StatusConflict, "CONFLICT", "order was modified concurrently, retry with fresh state", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}
