package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository"
)

type consultationRepository struct {
	BaseRepository
}

func NewConsultationRepository(db *sqlx.DB) repository.ConsultationRepository {
	return &consultationRepository{NewBaseRepository(db)}
}

func (r *consultationRepository) Create(ctx context.Context, c *model.Consultation) error {
	query := `
		INSERT INTO consultations (
			id, professional_id, client_id, dependent_id,
			service_id, value_cents, scheduled_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := r.q(ctx).ExecContext(ctx, query,
		c.ID,
		c.ProfessionalID,
		c.ClientID,
		c.DependentID,
		c.ServiceID,
		c.ValueCents,
		c.ScheduledAt,
		c.CreatedAt,
	)
	return classify(err)
}

type membershipRepository struct {
	BaseRepository
}

func NewMembershipRepository(db *sqlx.DB) repository.MembershipRepository {
	return &membershipRepository{NewBaseRepository(db)}
}

func (r *membershipRepository) GetClientMembership(ctx context.Context, clientID uuid.UUID) (*model.Membership, error) {
	query := `SELECT id, membership_status, membership_expires_at FROM clients WHERE id = $1`

	var m model.Membership
	if err := r.q(ctx).GetContext(ctx, &m, query, clientID); err != nil {
		return nil, notFoundOr("client", err)
	}
	return &m, nil
}

func (r *membershipRepository) GetDependentHolder(ctx context.Context, dependentID uuid.UUID) (uuid.UUID, error) {
	var clientID uuid.UUID
	if err := r.q(ctx).GetContext(ctx, &clientID, `SELECT client_id FROM dependents WHERE id = $1`, dependentID); err != nil {
		return uuid.Nil, notFoundOr("dependent", err)
	}
	return clientID, nil
}
