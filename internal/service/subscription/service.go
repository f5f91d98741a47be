package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository"
	"github.com/jwalitptl/agenda-api/pkg/errors"
)

// Service is the subscription ledger and the access gate built on it.
type Service struct {
	repo repository.SubscriptionRepository
	now  func() time.Time
}

func NewService(repo repository.SubscriptionRepository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}
}

// GetStatus returns the professional's record, or a "none" record when there
// is none yet.
func (s *Service) GetStatus(ctx context.Context, professionalID uuid.UUID) (model.SubscriptionRecord, error) {
	rec, err := s.repo.Get(ctx, professionalID)
	if errors.Is(err, errors.ErrNotFound) {
		return model.NoSubscription(professionalID), nil
	}
	if err != nil {
		return model.SubscriptionRecord{}, fmt.Errorf("failed to load subscription: %w", err)
	}
	return *rec, nil
}

// Status returns the access view served to the professional.
func (s *Service) Status(ctx context.Context, professionalID uuid.UUID) (model.SubscriptionStatusResponse, error) {
	rec, err := s.GetStatus(ctx, professionalID)
	if err != nil {
		return model.SubscriptionStatusResponse{}, err
	}
	return View(rec, s.now()), nil
}

// CanUseAgenda evaluates the access gate for the professional.
func (s *Service) CanUseAgenda(ctx context.Context, professionalID uuid.UUID) (bool, error) {
	rec, err := s.GetStatus(ctx, professionalID)
	if err != nil {
		return false, err
	}
	return CanUseAgenda(rec, s.now()), nil
}

// RequireAccess returns a Forbidden error unless the gate is open.
func (s *Service) RequireAccess(ctx context.Context, professionalID uuid.UUID) error {
	ok, err := s.CanUseAgenda(ctx, professionalID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Forbidden("an active agenda subscription is required", nil)
	}
	return nil
}

