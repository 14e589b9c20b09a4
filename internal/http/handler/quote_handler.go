package handler

import (
	"encoding/json"
	"net/http"

	"transport-pricing-service/internal/domain"
	"transport-pricing-service/internal/http/response"
	"transport-pricing-service/internal/pricing"
)

// QuoteHandler exposes the pricing engine directly for ad-hoc quote
// calculations. No order is touched.
type QuoteHandler struct {
	calculator *pricing.CachedCalculator
}

func NewQuoteHandler(calculator *pricing.CachedCalculator) *QuoteHandler {
	return &QuoteHandler{calculator: calculator}
}

type calcQuoteRequest struct {
	BasePrice   float64 `json:"base_price"`
	DistanceKM  float64 `json:"distance_km"`
	VehicleType string  `json:"vehicle_type"`
	SeasonBonus float64 `json:"season_bonus"`
	Operable    bool    `json:"operable"`
}

func (h *QuoteHandler) Calc(w http.ResponseWriter, r *http.Request) {
	var req calcQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	var problems []string
	if req.BasePrice < 0 {
		problems = append(problems, "base_price must not be negative")
	}
	if req.DistanceKM < 0 {
		problems = append(problems, "distance_km must not be negative")
	}
	switch domain.VehicleType(req.VehicleType) {
	case domain.VehicleSedan, domain.VehicleSUV, domain.VehicleTruck:
	default:
		problems = append(problems, "vehicle_type must be one of sedan, suv, truck")
	}
	if len(problems) > 0 {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "validation failed", problems)
		return
	}

	quote := h.calculator.Calc(r.Context(), pricing.QuoteInput{
		BasePrice:   req.BasePrice,
		DistanceKM:  req.DistanceKM,
		VehicleType: req.VehicleType,
		SeasonBonus: req.SeasonBonus,
		Operable:    req.Operable,
	})
	response.JSON(w, r, http.StatusOK, quote)
}
