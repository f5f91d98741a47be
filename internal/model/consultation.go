package model

import (
	"time"

	"github.com/google/uuid"
)

// Consultation is a membership-billed visit. Exactly one of ClientID and
// DependentID is set.
type Consultation struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ProfessionalID uuid.UUID  `db:"professional_id" json:"professional_id"`
	ClientID       *uuid.UUID `db:"client_id" json:"client_id,omitempty"`
	DependentID    *uuid.UUID `db:"dependent_id" json:"dependent_id,omitempty"`
	ServiceID      uuid.UUID  `db:"service_id" json:"service_id"`
	ValueCents     int64      `db:"value_cents" json:"value_cents"`
	ScheduledAt    time.Time  `db:"scheduled_at" json:"date"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

type CreateConsultationRequest struct {
	ClientID    *uuid.UUID `json:"client_id" binding:"required_without=DependentID,excluded_with=DependentID"`
	DependentID *uuid.UUID `json:"dependent_id" binding:"required_without=ClientID,excluded_with=ClientID"`
	ServiceID   uuid.UUID  `json:"service_id" binding:"required"`
	ValueCents  int64      `json:"value_cents" binding:"gte=0"`
	Date        time.Time  `json:"date" binding:"required"`
}

type MembershipStatus string

const (
	MembershipStatusActive   MembershipStatus = "active"
	MembershipStatusInactive MembershipStatus = "inactive"
)

// Membership is the convenio grant held on a client record.
type Membership struct {
	ClientID  uuid.UUID        `db:"id" json:"client_id"`
	Status    MembershipStatus `db:"membership_status" json:"status"`
	ExpiresAt *time.Time       `db:"membership_expires_at" json:"expires_at"`
}

// IsActive reports whether the membership grant is usable at now.
func (m Membership) IsActive(now time.Time) bool {
	return m.Status == MembershipStatusActive && m.ExpiresAt != nil && m.ExpiresAt.After(now)
}
