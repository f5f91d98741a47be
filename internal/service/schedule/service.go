package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository"
	"github.com/jwalitptl/agenda-api/pkg/errors"
)

type Config struct {
	Location     *time.Location
	CacheTTL     time.Duration
	MaxRangeDays int
}

// Service is the schedule configuration store. Reads go through a short-lived
// cache that is replaced on every write.
type Service struct {
	repo         repository.ScheduleRepository
	appointments repository.AppointmentRepository
	cache        *cache.Cache
	loc          *time.Location
	maxRangeDays int
}

func NewService(repo repository.ScheduleRepository, appointments repository.AppointmentRepository, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 62
	}
	return &Service{
		repo:         repo,
		appointments: appointments,
		cache:        cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		loc:          cfg.Location,
		maxRangeDays: cfg.MaxRangeDays,
	}
}

// Get returns the professional's config, creating the default template on
// first access.
func (s *Service) Get(ctx context.Context, professionalID uuid.UUID) (*model.ScheduleConfig, error) {
	if cached, ok := s.cache.Get(professionalID.String()); ok {
		cfg := cached.(model.ScheduleConfig)
		return &cfg, nil
	}

	cfg, err := s.repo.Get(ctx, professionalID)
	if errors.Is(err, errors.ErrNotFound) {
		def := model.DefaultScheduleConfig(professionalID)
		cfg, err = s.repo.CreateIfAbsent(ctx, &def)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule config: %w", err)
	}

	s.cache.SetDefault(professionalID.String(), *cfg)
	return cfg, nil
}

// Put replaces the professional's config.
func (s *Service) Put(ctx context.Context, professionalID uuid.UUID, req *model.UpdateScheduleRequest) (*model.ScheduleConfig, error) {
	if (req.BreakStart == nil) != (req.BreakEnd == nil) {
		return nil, errors.Validation("break_start and break_end must be set together", nil)
	}

	slotMinutes := req.SlotMinutes
	if slotMinutes == 0 {
		slotMinutes = model.DefaultSlotMinutes
	}

	cfg := &model.ScheduleConfig{
		ProfessionalID: professionalID,
		Weekly:         req.Weekly,
		SlotMinutes:    slotMinutes,
		BreakStart:     req.BreakStart,
		BreakEnd:       req.BreakEnd,
	}
	if err := s.repo.Upsert(ctx, cfg); err != nil {
		s.cache.Delete(professionalID.String())
		return nil, fmt.Errorf("failed to save schedule config: %w", err)
	}

	s.cache.SetDefault(professionalID.String(), *cfg)
	return cfg, nil
}

// ListSlots expands the professional's template over dates. With
// availableOnly, slots held by an active appointment are dropped; otherwise
// they are reported with Available false.
func (s *Service) ListSlots(ctx context.Context, professionalID uuid.UUID, dates model.DateRange, availableOnly bool) ([]model.Slot, error) {
	if dates.To.Before(dates.From) {
		return nil, errors.Validation("end_date must not be before start_date", nil)
	}
	if dates.Days() > s.maxRangeDays {
		return nil, errors.Validation(fmt.Sprintf("date range must not exceed %d days", s.maxRangeDays), nil)
	}

	cfg, err := s.Get(ctx, professionalID)
	if err != nil {
		return nil, err
	}

	from, to := dates.Bounds(s.loc)
	booked, err := s.appointments.ListByRange(ctx, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	taken := make(map[int64]bool, len(booked))
	for _, apt := range booked {
		if apt.Status.OccupiesSlot() {
			taken[apt.ScheduledAt.Unix()] = true
		}
	}

	slots := []model.Slot{}
	for ts := range Slots(*cfg, dates, s.loc) {
		free := !taken[ts.Unix()]
		if availableOnly && !free {
			continue
		}
		slots = append(slots, model.Slot{Start: ts, Available: free})
	}
	return slots, nil
}
