package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository"
)

type subscriptionRepository struct {
	BaseRepository
}

func NewSubscriptionRepository(db *sqlx.DB) repository.SubscriptionRepository {
	return &subscriptionRepository{NewBaseRepository(db)}
}

const subscriptionColumns = `professional_id, status, expires_at, last_payment_id, updated_at`

func (r *subscriptionRepository) Get(ctx context.Context, professionalID uuid.UUID) (*model.SubscriptionRecord, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM agenda_subscriptions WHERE professional_id = $1`

	var rec model.SubscriptionRecord
	if err := r.q(ctx).GetContext(ctx, &rec, query, professionalID); err != nil {
		return nil, notFoundOr("subscription", err)
	}
	return &rec, nil
}

func (r *subscriptionRepository) Activate(ctx context.Context, professionalID uuid.UUID, expiresAt time.Time, paymentID uuid.UUID) (*model.SubscriptionRecord, error) {
	query := `
		INSERT INTO agenda_subscriptions (` + subscriptionColumns + `)
		VALUES ($1, 'active', $2, $3, NOW())
		ON CONFLICT (professional_id) DO UPDATE SET
			status          = 'active',
			expires_at      = EXCLUDED.expires_at,
			last_payment_id = EXCLUDED.last_payment_id,
			updated_at      = NOW()
		RETURNING ` + subscriptionColumns

	var rec model.SubscriptionRecord
	if err := r.q(ctx).GetContext(ctx, &rec, query, professionalID, expiresAt, paymentID); err != nil {
		return nil, classify(err)
	}
	return &rec, nil
}

func (r *subscriptionRepository) MarkPending(ctx context.Context, professionalID uuid.UUID, now time.Time) error {
	query := `
		INSERT INTO agenda_subscriptions (` + subscriptionColumns + `)
		VALUES ($1, 'pending', NULL, NULL, NOW())
		ON CONFLICT (professional_id) DO UPDATE SET
			status     = 'pending',
			updated_at = NOW()
		WHERE NOT (agenda_subscriptions.status = 'active' AND agenda_subscriptions.expires_at > $2)
	`
	_, err := r.q(ctx).ExecContext(ctx, query, professionalID, now)
	return classify(err)
}
