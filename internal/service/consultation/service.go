package consultation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository"
	"github.com/jwalitptl/agenda-api/pkg/errors"
)

// Service records membership-billed consultations. They are gated by the
// client's membership grant rather than the professional's subscription.
type Service struct {
	consultations repository.ConsultationRepository
	memberships   repository.MembershipRepository
	now           func() time.Time
}

func NewService(consultations repository.ConsultationRepository, memberships repository.MembershipRepository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{consultations: consultations, memberships: memberships, now: now}
}

func (s *Service) Record(ctx context.Context, professionalID uuid.UUID, req *model.CreateConsultationRequest) (*model.Consultation, error) {
	if (req.ClientID == nil) == (req.DependentID == nil) {
		return nil, errors.Validation("exactly one of client_id and dependent_id is required", nil)
	}
	if req.ServiceID == uuid.Nil {
		return nil, errors.Validation("service_id is required", nil)
	}
	if req.ValueCents < 0 {
		return nil, errors.Validation("value_cents must not be negative", nil)
	}
	if req.Date.IsZero() {
		return nil, errors.Validation("date is required", nil)
	}

	holderID, err := s.holder(ctx, req)
	if err != nil {
		return nil, err
	}
	membership, err := s.memberships.GetClientMembership(ctx, holderID)
	if err != nil {
		return nil, err
	}
	if !membership.IsActive(s.now()) {
		return nil, errors.Forbidden("client membership is not active", nil)
	}

	c := &model.Consultation{
		ID:             uuid.New(),
		ProfessionalID: professionalID,
		ClientID:       req.ClientID,
		DependentID:    req.DependentID,
		ServiceID:      req.ServiceID,
		ValueCents:     req.ValueCents,
		ScheduledAt:    req.Date.UTC(),
	}
	if err := s.consultations.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to record consultation: %w", err)
	}
	return c, nil
}

// holder resolves the client whose membership pays for the consultation.
func (s *Service) holder(ctx context.Context, req *model.CreateConsultationRequest) (uuid.UUID, error) {
	if req.ClientID != nil {
		return *req.ClientID, nil
	}
	return s.memberships.GetDependentHolder(ctx, *req.DependentID)
}
