package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a settlement notification delivered by the payment gateway.
type Notification struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Action    string `json:"action"`
	PaymentID string `json:"payment_id"`
}

type WebhookOutcome string

const (
	WebhookOutcomeIgnored     WebhookOutcome = "ignored"
	WebhookOutcomeNotApproved WebhookOutcome = "not_approved"
	WebhookOutcomeApplied     WebhookOutcome = "applied"
	WebhookOutcomeDuplicate   WebhookOutcome = "duplicate"
	WebhookOutcomeQuarantined WebhookOutcome = "quarantined"
)

// WebhookEvent is the journal entry kept for each processed notification.
type WebhookEvent struct {
	ID                uuid.UUID      `db:"id" json:"id"`
	Provider          string         `db:"provider" json:"provider"`
	NotificationID    string         `db:"notification_id" json:"notification_id"`
	Topic             string         `db:"topic" json:"topic"`
	PaymentID         string         `db:"payment_id" json:"payment_id"`
	ExternalReference string         `db:"external_reference" json:"external_reference"`
	Outcome           WebhookOutcome `db:"outcome" json:"outcome"`
	Detail            string         `db:"detail" json:"detail"`
	ReceivedAt        time.Time      `db:"received_at" json:"received_at"`
}
