package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository"
)

type webhookEventRepository struct {
	BaseRepository
}

func NewWebhookEventRepository(db *sqlx.DB) repository.WebhookEventRepository {
	return &webhookEventRepository{NewBaseRepository(db)}
}

const webhookEventColumns = `id, provider, notification_id, topic, payment_id, external_reference, outcome, detail, received_at`

func (r *webhookEventRepository) Record(ctx context.Context, e *model.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (` + webhookEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}

	_, err := r.q(ctx).ExecContext(ctx, query,
		e.ID,
		e.Provider,
		e.NotificationID,
		e.Topic,
		e.PaymentID,
		e.ExternalReference,
		e.Outcome,
		e.Detail,
		e.ReceivedAt,
	)
	return classify(err)
}

func (r *webhookEventRepository) ListQuarantined(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	query := `
		SELECT ` + webhookEventColumns + `
		FROM webhook_events
		WHERE outcome = $1
		ORDER BY received_at DESC
		LIMIT $2
	`
	events := []*model.WebhookEvent{}
	if err := r.q(ctx).SelectContext(ctx, &events, query, model.WebhookOutcomeQuarantined, limit); err != nil {
		return nil, classify(err)
	}
	return events, nil
}
