package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository"
	apperrors "github.com/jwalitptl/agenda-api/pkg/errors"
)

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

const appointmentColumns = `id, professional_id, patient_id, scheduled_at, status, notes, created_at, updated_at`

// slotTaken converts a unique violation on the active slot index into the
// booking conflict reported to callers.
func slotTaken(err error) error {
	err = classify(err)
	if apperrors.Is(err, apperrors.ErrConflict) {
		return apperrors.Conflict("slot already booked", err)
	}
	return err
}

func (r *appointmentRepository) Create(ctx context.Context, apt *model.Appointment) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	now := time.Now().UTC()
	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	apt.CreatedAt = now
	apt.UpdatedAt = now

	_, err := r.q(ctx).ExecContext(ctx, query,
		apt.ID,
		apt.ProfessionalID,
		apt.PatientID,
		apt.ScheduledAt,
		apt.Status,
		apt.Notes,
		apt.CreatedAt,
		apt.UpdatedAt,
	)
	return slotTaken(err)
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var apt model.Appointment
	if err := r.q(ctx).GetContext(ctx, &apt, query, id); err != nil {
		return nil, notFoundOr("appointment", err)
	}
	return &apt, nil
}

func (r *appointmentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	if !ok {
		return nil, apperrors.Internal(errors.New("appointment row lock requested outside a transaction"))
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1 FOR UPDATE`

	var apt model.Appointment
	if err := tx.GetContext(ctx, &apt, query, id); err != nil {
		return nil, notFoundOr("appointment", err)
	}
	return &apt, nil
}

func (r *appointmentRepository) Update(ctx context.Context, apt *model.Appointment) error {
	query := `
		UPDATE appointments
		SET status = $1, notes = $2, updated_at = $3
		WHERE id = $4
	`
	apt.UpdatedAt = time.Now().UTC()

	result, err := r.q(ctx).ExecContext(ctx, query, apt.Status, apt.Notes, apt.UpdatedAt, apt.ID)
	if err != nil {
		return slotTaken(err)
	}
	return expectOne(result, "appointment")
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.q(ctx).ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return classify(err)
	}
	return expectOne(result, "appointment")
}

func (r *appointmentRepository) ListByRange(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE professional_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3
		ORDER BY scheduled_at ASC, created_at ASC
	`
	appointments := []*model.Appointment{}
	if err := r.q(ctx).SelectContext(ctx, &appointments, query, professionalID, from, to); err != nil {
		return nil, classify(err)
	}
	return appointments, nil
}
