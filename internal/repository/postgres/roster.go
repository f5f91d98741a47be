package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/agenda-api/internal/repository"
)

type rosterRepository struct {
	BaseRepository
}

func NewPatientRosterRepository(db *sqlx.DB) repository.PatientRosterRepository {
	return &rosterRepository{NewBaseRepository(db)}
}

func (r *rosterRepository) IsLinked(ctx context.Context, professionalID, patientID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM professional_patients
			WHERE professional_id = $1 AND patient_id = $2
		)
	`
	var linked bool
	if err := r.q(ctx).GetContext(ctx, &linked, query, professionalID, patientID); err != nil {
		return false, classify(err)
	}
	return linked, nil
}

func (r *rosterRepository) Link(ctx context.Context, professionalID, patientID uuid.UUID) error {
	query := `
		INSERT INTO professional_patients (professional_id, patient_id, linked_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (professional_id, patient_id) DO NOTHING
	`
	_, err := r.q(ctx).ExecContext(ctx, query, professionalID, patientID)
	return classify(err)
}
