package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed  AppointmentStatus = "confirmed"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
)

// appointmentTransitions lists the statuses each status may move to.
// Completed and cancelled are terminal.
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled: {
		AppointmentStatusConfirmed,
		AppointmentStatusInProgress,
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
	},
	AppointmentStatusConfirmed: {
		AppointmentStatusScheduled,
		AppointmentStatusInProgress,
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
	},
	AppointmentStatusInProgress: {
		AppointmentStatusCompleted,
		AppointmentStatusCancelled,
	},
	AppointmentStatusCompleted: nil,
	AppointmentStatusCancelled: nil,
}

func (s AppointmentStatus) IsValid() bool {
	_, ok := appointmentTransitions[s]
	return ok
}

// CanTransitionTo reports whether an appointment in status s may move to
// next. Staying in the same status is always allowed.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	if s == next {
		return next.IsValid()
	}
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OccupiesSlot reports whether an appointment in this status blocks its
// timestamp for other bookings.
func (s AppointmentStatus) OccupiesSlot() bool {
	return s != AppointmentStatusCancelled
}

type Appointment struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	ProfessionalID uuid.UUID         `db:"professional_id" json:"professional_id"`
	PatientID      uuid.UUID         `db:"patient_id" json:"patient_id"`
	ScheduledAt    time.Time         `db:"scheduled_at" json:"date"`
	Status         AppointmentStatus `db:"status" json:"status"`
	Notes          string            `db:"notes" json:"notes"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

type CreateAppointmentRequest struct {
	PatientID uuid.UUID `json:"patient_id" binding:"required"`
	Date      time.Time `json:"date" binding:"required"`
	Notes     string    `json:"notes" binding:"max=2000"`
}

type UpdateAppointmentRequest struct {
	Status *AppointmentStatus `json:"status" binding:"omitempty,appointment_status"`
	Notes  *string            `json:"notes" binding:"omitempty,max=2000"`
}

// Slot is a candidate start time returned by the slot listing.
type Slot struct {
	Start     time.Time `json:"start"`
	Available bool      `json:"available"`
}
