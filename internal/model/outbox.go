package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Domain event types written to the outbox.
const (
	EventSubscriptionActivated = "subscription.activated"
	EventAppointmentBooked     = "appointment.booked"
	EventAppointmentCancelled  = "appointment.cancelled"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// NewOutboxEvent marshals payload into a pending outbox event.
func NewOutboxEvent(eventType string, payload interface{}) (*OutboxEvent, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   b,
		Status:    OutboxStatusPending,
	}, nil
}

type SubscriptionActivatedPayload struct {
	ProfessionalID uuid.UUID `json:"professional_id"`
	PaymentID      uuid.UUID `json:"payment_id"`
	ExpiresAt      time.Time `json:"expires_at"`
	PayerEmail     string    `json:"payer_email,omitempty"`
}

type AppointmentEventPayload struct {
	AppointmentID  uuid.UUID `json:"appointment_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	ScheduledAt    time.Time `json:"scheduled_at"`
}
