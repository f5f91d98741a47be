package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/agenda-api/internal/repository"
	"github.com/jwalitptl/agenda-api/pkg/errors"
)

type AccessGate interface {
	RequireAccess(ctx context.Context, professionalID uuid.UUID) error
}

// Service manages which patients a professional may book for.
type Service struct {
	roster repository.PatientRosterRepository
	gate   AccessGate
}

func NewService(roster repository.PatientRosterRepository, gate AccessGate) *Service {
	return &Service{roster: roster, gate: gate}
}

// Link adds patientID to the professional's roster. Linking an already linked
// patient succeeds.
func (s *Service) Link(ctx context.Context, professionalID, patientID uuid.UUID) error {
	if patientID == uuid.Nil {
		return errors.Validation("patient_id is required", nil)
	}
	if err := s.gate.RequireAccess(ctx, professionalID); err != nil {
		return err
	}
	if err := s.roster.Link(ctx, professionalID, patientID); err != nil {
		return fmt.Errorf("failed to link patient: %w", err)
	}
	return nil
}
