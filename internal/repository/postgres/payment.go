package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository"
)

type paymentRepository struct {
	BaseRepository
}

func NewPaymentRepository(db *sqlx.DB) repository.PaymentRepository {
	return &paymentRepository{NewBaseRepository(db)}
}

const paymentColumns = `id, professional_id, amount_cents, currency, status, gateway_intent_id,
	external_payment_id, external_reference, payer_email, created_at, paid_at`

func (r *paymentRepository) Create(ctx context.Context, p *model.PaymentRecord) error {
	query := `
		INSERT INTO agenda_payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now().UTC()

	_, err := r.q(ctx).ExecContext(ctx, query,
		p.ID,
		p.ProfessionalID,
		p.AmountCents,
		p.Currency,
		p.Status,
		p.GatewayIntentID,
		p.ExternalPaymentID,
		p.ExternalReference,
		p.PayerEmail,
		p.CreatedAt,
		p.PaidAt,
	)
	return classify(err)
}

func (r *paymentRepository) GetByReference(ctx context.Context, externalReference string) (*model.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM agenda_payments WHERE external_reference = $1`

	var p model.PaymentRecord
	if err := r.q(ctx).GetContext(ctx, &p, query, externalReference); err != nil {
		return nil, notFoundOr("payment", err)
	}
	return &p, nil
}

// MarkPaid relies on the status predicate so concurrent deliveries race on
// the row lock and only one of them sees the pending row.
func (r *paymentRepository) MarkPaid(ctx context.Context, externalReference, externalPaymentID string, paidAt time.Time) (*model.PaymentRecord, bool, error) {
	query := `
		UPDATE agenda_payments
		SET status = 'paid', external_payment_id = $2, paid_at = $3
		WHERE external_reference = $1 AND status = 'pending'
		RETURNING ` + paymentColumns

	var p model.PaymentRecord
	err := r.q(ctx).GetContext(ctx, &p, query, externalReference, externalPaymentID, paidAt)
	if err == nil {
		return &p, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, classify(err)
	}

	current, err := r.GetByReference(ctx, externalReference)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}
