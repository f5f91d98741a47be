package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/agenda-api/internal/model"
	"github.com/jwalitptl/agenda-api/internal/repository/repotest"
	apperrors "github.com/jwalitptl/agenda-api/pkg/errors"
)

func newService(store *repotest.Store) *Service {
	return NewService(store.Schedules(), store.Appointments(), Config{Location: time.UTC, CacheTTL: time.Minute, MaxRangeDays: 31})
}

func TestGetCreatesDefault(t *testing.T) {
	store := repotest.NewStore()
	svc := newService(store)
	ctx := context.Background()
	proID := uuid.New()

	cfg, err := svc.Get(ctx, proID)
	require.NoError(t, err)
	assert.Equal(t, proID, cfg.ProfessionalID)
	assert.Equal(t, 30, cfg.SlotMinutes)

	stored, err := store.Schedules().Get(ctx, proID)
	require.NoError(t, err)
	assert.Equal(t, cfg.Weekly, stored.Weekly)
}

func TestGetPropagatesStorageErrors(t *testing.T) {
	store := repotest.NewStore()
	store.FailOn("schedules.Get", apperrors.TransientStorage(errors.New("connection refused")))
	svc := newService(store)

	_, err := svc.Get(context.Background(), uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrTransientStorage))
}

func TestPutReplacesAndRefreshesCache(t *testing.T) {
	store := repotest.NewStore()
	svc := newService(store)
	ctx := context.Background()
	proID := uuid.New()

	_, err := svc.Get(ctx, proID)
	require.NoError(t, err)

	var weekly model.WeeklyTemplate
	weekly[time.Monday] = model.Window("09:00", "11:00")
	bs, be := model.MustTimeOfDay("10:00"), model.MustTimeOfDay("10:30")

	updated, err := svc.Put(ctx, proID, &model.UpdateScheduleRequest{Weekly: weekly, SlotMinutes: 15, BreakStart: &bs, BreakEnd: &be})
	require.NoError(t, err)
	assert.Equal(t, 15, updated.SlotMinutes)

	got, err := svc.Get(ctx, proID)
	require.NoError(t, err)
	assert.Equal(t, weekly, got.Weekly)
	assert.True(t, got.HasBreak())
}

func TestPutDefaultsSlotDuration(t *testing.T) {
	svc := newService(repotest.NewStore())

	cfg, err := svc.Put(context.Background(), uuid.New(), &model.UpdateScheduleRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSlotMinutes, cfg.SlotMinutes)
}

func TestPutRejectsHalfBreak(t *testing.T) {
	svc := newService(repotest.NewStore())
	bs := model.MustTimeOfDay("12:00")

	_, err := svc.Put(context.Background(), uuid.New(), &model.UpdateScheduleRequest{BreakStart: &bs})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestListSlotsMarksBooked(t *testing.T) {
	store := repotest.NewStore()
	svc := newService(store)
	ctx := context.Background()
	proID := uuid.New()

	var weekly model.WeeklyTemplate
	weekly[time.Monday] = model.Window("08:00", "10:00")
	_, err := svc.Put(ctx, proID, &model.UpdateScheduleRequest{Weekly: weekly, SlotMinutes: 30})
	require.NoError(t, err)

	nine := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Appointments().Create(ctx, &model.Appointment{
		ProfessionalID: proID, PatientID: uuid.New(), ScheduledAt: nine, Status: model.AppointmentStatusScheduled,
	}))
	require.NoError(t, store.Appointments().Create(ctx, &model.Appointment{
		ProfessionalID: proID, PatientID: uuid.New(), ScheduledAt: nine.Add(30 * time.Minute), Status: model.AppointmentStatusCancelled,
	}))

	dates := model.DateRange{From: monday, To: monday}

	all, err := svc.ListSlots(ctx, proID, dates, false)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.False(t, all[2].Available)
	assert.True(t, all[3].Available)

	free, err := svc.ListSlots(ctx, proID, dates, true)
	require.NoError(t, err)
	assert.Len(t, free, 3)
}

func TestListSlotsValidatesRange(t *testing.T) {
	svc := newService(repotest.NewStore())
	ctx := context.Background()

	_, err := svc.ListSlots(ctx, uuid.New(), model.DateRange{From: monday, To: monday.AddDate(0, 0, -1)}, false)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = svc.ListSlots(ctx, uuid.New(), model.DateRange{From: monday, To: monday.AddDate(0, 0, 31)}, false)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}
