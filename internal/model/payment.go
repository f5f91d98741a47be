package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// PaymentRecord tracks one subscription payment intent. It moves from
// pending to paid exactly once.
type PaymentRecord struct {
	ID                uuid.UUID     `db:"id" json:"id"`
	ProfessionalID    uuid.UUID     `db:"professional_id" json:"professional_id"`
	AmountCents       int64         `db:"amount_cents" json:"amount_cents"`
	Currency          string        `db:"currency" json:"currency"`
	Status            PaymentStatus `db:"status" json:"status"`
	GatewayIntentID   string        `db:"gateway_intent_id" json:"intent_id"`
	ExternalPaymentID *string       `db:"external_payment_id" json:"external_payment_id,omitempty"`
	ExternalReference string        `db:"external_reference" json:"external_reference"`
	PayerEmail        string        `db:"payer_email" json:"-"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	PaidAt            *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
}

type CreatePaymentRequest struct {
	PayerEmail string `json:"payer_email" binding:"omitempty,email"`
}

// PaymentIntentResponse is returned after a payment intent is issued.
type PaymentIntentResponse struct {
	IntentID          string `json:"intent_id"`
	RedirectURL       string `json:"redirect_url"`
	ExternalReference string `json:"external_reference"`
}
