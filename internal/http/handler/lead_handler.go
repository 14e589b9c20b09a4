package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"transport-pricing-service/internal/domain"
	"transport-pricing-service/internal/http/response"
	"transport-pricing-service/internal/service"
)

type LeadHandler struct {
	leads *service.LeadService
}

func NewLeadHandler(leads *service.LeadService) *LeadHandler {
	return &LeadHandler{leads: leads}
}

type createLeadRequest struct {
	Name        string  `json:"name"`
	Phone       string  `json:"phone"`
	Email       string  `json:"email"`
	OriginZip   string  `json:"origin_zip"`
	DestZip     string  `json:"dest_zip"`
	DistanceKM  float64 `json:"distance_km"`
	VehicleType string  `json:"vehicle_type"`
	Operable    *bool   `json:"operable"`
}

func (req *createLeadRequest) validate() []string {
	var problems []string
	if strings.TrimSpace(req.Name) == "" {
		problems = append(problems, "name is required")
	}
	if req.DistanceKM < 0 {
		problems = append(problems, "distance_km must not be negative")
	}
	switch domain.VehicleType(req.VehicleType) {
	case domain.VehicleSedan, domain.VehicleSUV, domain.VehicleTruck:
	default:
		problems = append(problems, "vehicle_type must be one of sedan, suv, truck")
	}
	return problems
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing principal", nil)
		return
	}
	var req createLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if problems := req.validate(); len(problems) > 0 {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "validation failed", problems)
		return
	}
	operable := true
	if req.Operable != nil {
		operable = *req.Operable
	}
	lead, err := h.leads.CreateLead(r.Context(), actor, service.CreateLeadInput{
		Name:        strings.TrimSpace(req.Name),
		Phone:       strings.TrimSpace(req.Phone),
		Email:       strings.TrimSpace(req.Email),
		OriginZip:   strings.TrimSpace(req.OriginZip),
		DestZip:     strings.TrimSpace(req.DestZip),
		DistanceKM:  req.DistanceKM,
		VehicleType: domain.VehicleType(req.VehicleType),
		Operable:    operable,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusCreated, lead)
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	lead, err := h.leads.GetLead(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, lead)
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing principal", nil)
		return
	}
	limit, offset := pagination(r)
	leads, err := h.leads.ListLeads(r.Context(), actor, limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, leads)
}
