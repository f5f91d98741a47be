package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository"
)

type scheduleRepository struct {
	BaseRepository
}

func NewScheduleRepository(db *sqlx.DB) repository.ScheduleRepository {
	return &scheduleRepository{NewBaseRepository(db)}
}

const scheduleColumns = `professional_id, weekly_windows, slot_minutes, break_start, break_end, updated_at`

func (r *scheduleRepository) Get(ctx context.Context, professionalID uuid.UUID) (*model.ScheduleConfig, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedule_configs WHERE professional_id = $1`

	var cfg model.ScheduleConfig
	if err := r.q(ctx).GetContext(ctx, &cfg, query, professionalID); err != nil {
		return nil, notFoundOr("schedule config", err)
	}
	return &cfg, nil
}

func (r *scheduleRepository) Upsert(ctx context.Context, cfg *model.ScheduleConfig) error {
	query := `
		INSERT INTO schedule_configs (` + scheduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (professional_id) DO UPDATE SET
			weekly_windows = EXCLUDED.weekly_windows,
			slot_minutes   = EXCLUDED.slot_minutes,
			break_start    = EXCLUDED.break_start,
			break_end      = EXCLUDED.break_end,
			updated_at     = EXCLUDED.updated_at
	`
	cfg.UpdatedAt = time.Now().UTC()

	_, err := r.q(ctx).ExecContext(ctx, query,
		cfg.ProfessionalID,
		cfg.Weekly,
		cfg.SlotMinutes,
		cfg.BreakStart,
		cfg.BreakEnd,
		cfg.UpdatedAt,
	)
	return classify(err)
}

func (r *scheduleRepository) CreateIfAbsent(ctx context.Context, cfg *model.ScheduleConfig) (*model.ScheduleConfig, error) {
	query := `
		INSERT INTO schedule_configs (` + scheduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (professional_id) DO NOTHING
	`
	cfg.UpdatedAt = time.Now().UTC()

	if _, err := r.q(ctx).ExecContext(ctx, query,
		cfg.ProfessionalID,
		cfg.Weekly,
		cfg.SlotMinutes,
		cfg.BreakStart,
		cfg.BreakEnd,
		cfg.UpdatedAt,
	); err != nil {
		return nil, classify(err)
	}

	// Re-read so a concurrent first access returns the winning row.
	return r.Get(ctx, cfg.ProfessionalID)
}
