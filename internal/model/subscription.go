package model

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionStatusNone    SubscriptionStatus = "none"
	SubscriptionStatusPending SubscriptionStatus = "pending"
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// SubscriptionRecord is the single current agenda grant of a professional.
type SubscriptionRecord struct {
	ProfessionalID uuid.UUID          `db:"professional_id" json:"professional_id"`
	Status         SubscriptionStatus `db:"status" json:"status"`
	ExpiresAt      *time.Time         `db:"expires_at" json:"expires_at"`
	LastPaymentID  *uuid.UUID         `db:"last_payment_id" json:"last_payment_id,omitempty"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}

// NoSubscription is the record reported for a professional with no grant.
func NoSubscription(professionalID uuid.UUID) SubscriptionRecord {
	return SubscriptionRecord{ProfessionalID: professionalID, Status: SubscriptionStatusNone}
}

// SubscriptionStatusResponse is the access view served to the professional.
type SubscriptionStatusResponse struct {
	Status        SubscriptionStatus `json:"status"`
	ExpiresAt     *time.Time         `json:"expires_at"`
	DaysRemaining int                `json:"days_remaining"`
	CanUseAgenda  bool               `json:"can_use_agenda"`
}
