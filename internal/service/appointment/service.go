package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository"
	"github.com/jwalitptl/agenda-api/pkg/errors"
	"github.com/jwalitptl/agenda-api/pkg/logger"
	"github.com/jwalitptl/agenda-api/pkg/metrics"
)

// AccessGate decides whether a professional may use scheduling features.
type AccessGate interface {
	RequireAccess(ctx context.Context, professionalID uuid.UUID) error
}

type Deps struct {
	Appointments repository.AppointmentRepository
	Roster       repository.PatientRosterRepository
	Outbox       repository.OutboxRepository
	Tx           repository.TxManager
	Gate         AccessGate
	Location     *time.Location
	Logger       *logger.Logger
	Metrics      *metrics.Metrics
}

// Service is the booking ledger.
type Service struct {
	repo    repository.AppointmentRepository
	roster  repository.PatientRosterRepository
	outbox  repository.OutboxRepository
	tx      repository.TxManager
	gate    AccessGate
	loc     *time.Location
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(d Deps) *Service {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewNop()
	}
	return &Service{
		repo:    d.Appointments,
		roster:  d.Roster,
		outbox:  d.Outbox,
		tx:      d.Tx,
		gate:    d.Gate,
		loc:     d.Location,
		logger:  d.Logger,
		metrics: d.Metrics,
	}
}

// List returns the professional's appointments within the closed date range,
// ordered by time.
func (s *Service) List(ctx context.Context, professionalID uuid.UUID, dates model.DateRange) ([]*model.Appointment, error) {
	if dates.To.Before(dates.From) {
		return nil, errors.Validation("end_date must not be before start_date", nil)
	}
	from, to := dates.Bounds(s.loc)
	appointments, err := s.repo.ListByRange(ctx, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// Get returns one appointment owned by professionalID.
func (s *Service) Get(ctx context.Context, professionalID, id uuid.UUID) (*model.Appointment, error) {
	return s.owned(ctx, professionalID, id)
}

// Book creates a scheduled appointment. The professional must hold an active
// subscription and the patient must be on their roster. Slot uniqueness is
// enforced by the store on insert, so of two concurrent bookings for the same
// slot exactly one succeeds.
func (s *Service) Book(ctx context.Context, professionalID uuid.UUID, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if req.PatientID == uuid.Nil {
		return nil, errors.Validation("patient_id is required", nil)
	}
	if req.Date.IsZero() {
		return nil, errors.Validation("date is required", nil)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.gate.RequireAccess(gctx, professionalID)
	})
	g.Go(func() error {
		linked, err := s.roster.IsLinked(gctx, professionalID, req.PatientID)
		if err != nil {
			return fmt.Errorf("failed to check patient roster: %w", err)
		}
		if !linked {
			return errors.Forbidden("patient is not linked to this professional", nil)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.metrics.BookingAttempts.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	apt := &model.Appointment{
		ID:             uuid.New(),
		ProfessionalID: professionalID,
		PatientID:      req.PatientID,
		ScheduledAt:    req.Date.Truncate(time.Minute).UTC(),
		Status:         model.AppointmentStatusScheduled,
		Notes:          req.Notes,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, apt); err != nil {
			return err
		}
		return s.emit(ctx, model.EventAppointmentBooked, apt)
	})
	s.metrics.BookingAttempts.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("failed to book appointment: %w", err)
	}

	s.logger.Info("appointment booked",
		"appointment_id", apt.ID.String(),
		"professional_id", professionalID.String(),
		"scheduled_at", apt.ScheduledAt)
	return apt, nil
}

// Update changes status and notes of an appointment owned by professionalID.
// Status changes follow the transition table of model.AppointmentStatus. The
// row stays locked from read to write, so concurrent changes apply one after
// the other.
func (s *Service) Update(ctx context.Context, professionalID, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	var apt *model.Appointment
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		apt, err = s.lockOwned(ctx, professionalID, id)
		if err != nil {
			return err
		}
		return s.apply(ctx, apt, req)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}
	return apt, nil
}

// Cancel frees the appointment's slot. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, professionalID, id uuid.UUID) (*model.Appointment, error) {
	var apt *model.Appointment
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		apt, err = s.lockOwned(ctx, professionalID, id)
		if err != nil {
			return err
		}
		if apt.Status == model.AppointmentStatusCancelled {
			return nil
		}
		status := model.AppointmentStatusCancelled
		return s.apply(ctx, apt, &model.UpdateAppointmentRequest{Status: &status})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel appointment: %w", err)
	}
	return apt, nil
}

// Delete removes an appointment owned by professionalID.
func (s *Service) Delete(ctx context.Context, professionalID, id uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		apt, err := s.lockOwned(ctx, professionalID, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete appointment: %w", err)
		}
		if apt.Status.OccupiesSlot() {
			return s.emit(ctx, model.EventAppointmentCancelled, apt)
		}
		return nil
	})
}

// apply validates req against the locked apt and writes it.
func (s *Service) apply(ctx context.Context, apt *model.Appointment, req *model.UpdateAppointmentRequest) error {
	previous := apt.Status
	if req.Status != nil {
		if !req.Status.IsValid() {
			return errors.Validation(fmt.Sprintf("unknown status %q", *req.Status), nil)
		}
		if !apt.Status.CanTransitionTo(*req.Status) {
			return errors.Validation(fmt.Sprintf("cannot change status from %s to %s", apt.Status, *req.Status), nil)
		}
		apt.Status = *req.Status
	}
	if req.Notes != nil {
		apt.Notes = *req.Notes
	}

	if err := s.repo.Update(ctx, apt); err != nil {
		return err
	}
	if previous != model.AppointmentStatusCancelled && apt.Status == model.AppointmentStatusCancelled {
		return s.emit(ctx, model.EventAppointmentCancelled, apt)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, professionalID, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return checkOwner(apt, professionalID)
}

// lockOwned is owned for use inside a transaction that will write the row.
func (s *Service) lockOwned(ctx context.Context, professionalID, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	return checkOwner(apt, professionalID)
}

func checkOwner(apt *model.Appointment, professionalID uuid.UUID) (*model.Appointment, error) {
	if apt.ProfessionalID != professionalID {
		return nil, errors.Forbidden("appointment belongs to another professional", nil)
	}
	return apt, nil
}

func (s *Service) emit(ctx context.Context, eventType string, apt *model.Appointment) error {
	event, err := model.NewOutboxEvent(eventType, model.AppointmentEventPayload{
		AppointmentID:  apt.ID,
		ProfessionalID: apt.ProfessionalID,
		PatientID:      apt.PatientID,
		ScheduledAt:    apt.ScheduledAt,
	})
	if err != nil {
		return errors.Internal(err)
	}
	return s.outbox.Create(ctx, event)
}

func outcome(err error) string {
	if err == nil {
		return "booked"
	}
	switch errors.CodeOf(err) {
	case errors.ErrConflict:
		return "conflict"
	case errors.ErrForbidden:
		return "forbidden"
	case errors.ErrValidation:
		return "invalid"
	}
	return "error"
}
