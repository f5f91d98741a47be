package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("08:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(510), tod)
	assert.Equal(t, "08:30", tod.String())

	tod, err = ParseTimeOfDay("12:00:00")
	require.NoError(t, err)
	assert.Equal(t, "12:00", tod.String())

	for _, bad := range []string{"", "8:30", "24:00", "12:60", "ab:cd", "12-00", "12:00:61"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestWeeklyTemplateJSON(t *testing.T) {
	cfg := DefaultScheduleConfig(uuid.New())

	b, err := json.Marshal(cfg.Weekly)
	require.NoError(t, err)

	var decoded WeeklyTemplate
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, cfg.Weekly, decoded)

	err = json.Unmarshal([]byte(`{"funday":{"start":"08:00","end":"09:00"}}`), &decoded)
	assert.Error(t, err)
}

func TestWeeklyTemplateScan(t *testing.T) {
	var w WeeklyTemplate
	require.NoError(t, w.Scan([]byte(`{"Monday":{"start":"09:00","end":"10:00"}}`)))
	assert.True(t, w.Day(time.Monday).IsOpen())
	assert.False(t, w.Day(time.Tuesday).IsOpen())
}

func TestDefaultScheduleConfig(t *testing.T) {
	cfg := DefaultScheduleConfig(uuid.New())

	assert.Equal(t, 30, cfg.SlotMinutes)
	assert.False(t, cfg.HasBreak())
	assert.False(t, cfg.Weekly.Day(time.Sunday).IsOpen())
	assert.False(t, cfg.Weekly.Day(time.Saturday).IsOpen())
	assert.Equal(t, "18:00", cfg.Weekly.Day(time.Thursday).End.String())
	assert.Equal(t, "17:00", cfg.Weekly.Day(time.Friday).End.String())
}

func TestAppointmentTransitions(t *testing.T) {
	assert.True(t, AppointmentStatusScheduled.CanTransitionTo(AppointmentStatusConfirmed))
	assert.True(t, AppointmentStatusConfirmed.CanTransitionTo(AppointmentStatusCancelled))
	assert.True(t, AppointmentStatusInProgress.CanTransitionTo(AppointmentStatusCompleted))
	assert.True(t, AppointmentStatusCompleted.CanTransitionTo(AppointmentStatusCompleted))
	assert.False(t, AppointmentStatusCancelled.CanTransitionTo(AppointmentStatusScheduled))
	assert.False(t, AppointmentStatusCompleted.CanTransitionTo(AppointmentStatusScheduled))
	assert.False(t, AppointmentStatusScheduled.CanTransitionTo("archived"))

	assert.True(t, AppointmentStatusCompleted.OccupiesSlot())
	assert.False(t, AppointmentStatusCancelled.OccupiesSlot())
}

func TestRoleSet(t *testing.T) {
	roles := ParseRoleSet([]string{"Professional", "unknown"})
	assert.True(t, roles.Has(RoleProfessional))
	assert.False(t, roles.Has(RoleClient))
	assert.True(t, roles.Can(CapManageAgenda))

	clinic := NewRoleSet(RoleClinic)
	assert.False(t, clinic.Can(CapManageAgenda))
	assert.True(t, clinic.Can(CapRecordConsultation))
}

func TestPrincipalCanRequiresProfessionalScope(t *testing.T) {
	professionalID := uuid.New()

	unbound := Principal{UserID: uuid.New(), Roles: NewRoleSet(RoleClinic)}
	assert.False(t, unbound.Can(CapRecordConsultation))

	bound := Principal{UserID: uuid.New(), ProfessionalID: professionalID, Roles: NewRoleSet(RoleClinic)}
	assert.True(t, bound.Can(CapRecordConsultation))
	assert.False(t, bound.Can(CapViewSubscription))

	admin := Principal{UserID: uuid.New(), Roles: NewRoleSet(RoleAdmin)}
	assert.False(t, admin.Can(CapViewSubscription))
	assert.True(t, admin.Can(CapReviewWebhooks))

	admin.ProfessionalID = professionalID
	assert.True(t, admin.Can(CapViewSubscription))
}

func TestMembershipIsActive(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Second)

	assert.True(t, Membership{Status: MembershipStatusActive, ExpiresAt: &future}.IsActive(now))
	assert.False(t, Membership{Status: MembershipStatusActive, ExpiresAt: &past}.IsActive(now))
	assert.False(t, Membership{Status: MembershipStatusInactive, ExpiresAt: &future}.IsActive(now))
	assert.False(t, Membership{Status: MembershipStatusActive}.IsActive(now))
}

func TestDateRange(t *testing.T) {
	r, err := ParseDateRange("2024-05-06", "2024-05-12")
	require.NoError(t, err)
	assert.Equal(t, 7, r.Days())

	start, end := r.Bounds(time.UTC)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), end)

	_, err = ParseDateRange("2024-13-01", "2024-05-12")
	assert.Error(t, err)
}
