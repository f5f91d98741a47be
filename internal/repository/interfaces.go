package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/agenda-api/internal/model"
)

// TxManager runs fn inside a transaction carried by ctx. Repositories called
// with that ctx join the transaction.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ScheduleRepository interface {
	// Get returns a NotFound error when the professional has no config.
	Get(ctx context.Context, professionalID uuid.UUID) (*model.ScheduleConfig, error)
	// Upsert replaces the config keyed by professional id.
	Upsert(ctx context.Context, cfg *model.ScheduleConfig) error
	// CreateIfAbsent inserts cfg unless a row exists and returns the stored row.
	CreateIfAbsent(ctx context.Context, cfg *model.ScheduleConfig) (*model.ScheduleConfig, error)
}

type AppointmentRepository interface {
	// Create inserts an appointment. An active appointment at the same
	// professional and timestamp yields a Conflict error.
	Create(ctx context.Context, apt *model.Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	// GetForUpdate reads the appointment and locks its row until the
	// transaction carried by ctx ends. It fails outside a transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	// Update writes status and notes. Reactivating onto an occupied slot
	// yields a Conflict error.
	Update(ctx context.Context, apt *model.Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByRange returns appointments with from <= scheduled_at < to ordered
	// by scheduled_at ascending.
	ListByRange(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*model.Appointment, error)
}

type PatientRosterRepository interface {
	IsLinked(ctx context.Context, professionalID, patientID uuid.UUID) (bool, error)
	// Link is idempotent.
	Link(ctx context.Context, professionalID, patientID uuid.UUID) error
}

type MembershipRepository interface {
	GetClientMembership(ctx context.Context, clientID uuid.UUID) (*model.Membership, error)
	// GetDependentHolder returns the client id a dependent belongs to.
	GetDependentHolder(ctx context.Context, dependentID uuid.UUID) (uuid.UUID, error)
}

type ConsultationRepository interface {
	Create(ctx context.Context, c *model.Consultation) error
}

type SubscriptionRepository interface {
	// Get returns a NotFound error when no record exists.
	Get(ctx context.Context, professionalID uuid.UUID) (*model.SubscriptionRecord, error)
	// Activate upserts the record to active with the given expiry.
	Activate(ctx context.Context, professionalID uuid.UUID, expiresAt time.Time, paymentID uuid.UUID) (*model.SubscriptionRecord, error)
	// MarkPending sets status pending unless the record is currently active
	// and unexpired at now.
	MarkPending(ctx context.Context, professionalID uuid.UUID, now time.Time) error
}

type PaymentRepository interface {
	Create(ctx context.Context, p *model.PaymentRecord) error
	GetByReference(ctx context.Context, externalReference string) (*model.PaymentRecord, error)
	// MarkPaid transitions the pending record with the given reference to
	// paid. It returns the updated record and true on the first transition,
	// or the current record and false when the record was already paid.
	MarkPaid(ctx context.Context, externalReference, externalPaymentID string, paidAt time.Time) (*model.PaymentRecord, bool, error)
}

type WebhookEventRepository interface {
	Record(ctx context.Context, e *model.WebhookEvent) error
	ListQuarantined(ctx context.Context, limit int) ([]*model.WebhookEvent, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *model.OutboxEvent) error
	// ProcessPending locks up to limit pending events, hands each to fn and
	// stores the resulting status, all in one transaction.
	ProcessPending(ctx context.Context, limit int, fn func(ctx context.Context, event *model.OutboxEvent) error) (int, error)
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
