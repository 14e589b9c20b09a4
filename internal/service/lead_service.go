package service

import (
	"context"
	"log/slog"

	"transport-pricing-service/internal/domain"
	"transport-pricing-service/internal/repository"
)

type CreateLeadInput struct {
	Name        string
	Phone       string
	Email       string
	OriginZip   string
	DestZip     string
	DistanceKM  float64
	VehicleType domain.VehicleType
	Operable    bool
}

type LeadService struct {
	leads  repository.LeadRepository
	audit  repository.AuditLogRepository
	logger *slog.Logger
}

func NewLeadService(leads repository.LeadRepository, audit repository.AuditLogRepository, logger *slog.Logger) *LeadService {
	return &LeadService{leads: leads, audit: audit, logger: logger}
}

func (s *LeadService) CreateLead(ctx context.Context, actor Actor, in CreateLeadInput) (*domain.Lead, error) {
	lead := &domain.Lead{
		Name:        in.Name,
		Phone:       in.Phone,
		Email:       in.Email,
		OriginZip:   in.OriginZip,
		DestZip:     in.DestZip,
		DistanceKM:  in.DistanceKM,
		VehicleType: in.VehicleType,
		Operable:    in.Operable,
		CreatedBy:   actor.UserID,
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, err
	}
	entry := &domain.AuditLog{
		ActorID:    actor.UserID,
		Action:     domain.AuditCreateLead,
		TargetType: "lead",
		TargetID:   lead.ID,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Error("audit entry failed", "action", string(domain.AuditCreateLead), "target_id", lead.ID, "error", err)
	}
	return lead, nil
}

func (s *LeadService) GetLead(ctx context.Context, actor Actor, id uint) (*domain.Lead, error) {
	lead, err := s.leads.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.isAdmin() && lead.CreatedBy != actor.UserID {
		return nil, ErrForbidden
	}
	return lead, nil
}

func (s *LeadService) ListLeads(ctx context.Context, actor Actor, limit, offset int) ([]domain.Lead, error) {
	filter := repository.LeadFilter{Limit: limit, Offset: offset}
	if !actor.isAdmin() {
		uid := actor.UserID
		filter.CreatedBy = &uid
	}
	return s.leads.List(ctx, filter)
}
