package schedule

import (
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/agenda-api/internal/model"
)

// 2024-05-06 is a Monday.
var monday = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

func mondayOnly(start, end string) model.ScheduleConfig {
	var weekly model.WeeklyTemplate
	weekly[time.Monday] = model.Window(start, end)
	return model.ScheduleConfig{ProfessionalID: uuid.New(), Weekly: weekly, SlotMinutes: 30}
}

func ptr(t model.TimeOfDay) *model.TimeOfDay { return &t }

func TestSlotsMondayMorning(t *testing.T) {
	cfg := mondayOnly("08:00", "12:00")

	got := slices.Collect(Slots(cfg, model.DateRange{From: monday, To: monday}, time.UTC))

	require.Len(t, got, 8)
	assert.Equal(t, time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC), got[0])
	assert.Equal(t, time.Date(2024, 5, 6, 11, 30, 0, 0, time.UTC), got[7])
	for i := 1; i < len(got); i++ {
		assert.Equal(t, 30*time.Minute, got[i].Sub(got[i-1]))
	}
}

func TestSlotsDeterministic(t *testing.T) {
	cfg := model.DefaultScheduleConfig(uuid.New())
	cfg.BreakStart, cfg.BreakEnd = ptr(model.MustTimeOfDay("12:00")), ptr(model.MustTimeOfDay("13:00"))
	dates := model.DateRange{From: monday, To: monday.AddDate(0, 0, 13)}

	seq := Slots(cfg, dates, time.UTC)
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	third := slices.Collect(Slots(cfg, dates, time.UTC))

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
	assert.True(t, slices.IsSortedFunc(first, func(a, b time.Time) int { return a.Compare(b) }))
}

func TestSlotsExcludeBreak(t *testing.T) {
	cfg := model.DefaultScheduleConfig(uuid.New())
	cfg.BreakStart, cfg.BreakEnd = ptr(model.MustTimeOfDay("12:00")), ptr(model.MustTimeOfDay("13:00"))

	got := slices.Collect(Slots(cfg, model.DateRange{From: monday, To: monday.AddDate(0, 0, 6)}, time.UTC))

	require.NotEmpty(t, got)
	for _, ts := range got {
		tod := model.Of(ts, time.UTC)
		assert.False(t, tod >= model.MustTimeOfDay("12:00") && tod < model.MustTimeOfDay("13:00"), ts)
	}
	assert.Contains(t, got, time.Date(2024, 5, 6, 11, 30, 0, 0, time.UTC))
	assert.Contains(t, got, time.Date(2024, 5, 6, 13, 0, 0, 0, time.UTC))
}

func TestSlotsSkipClosedDays(t *testing.T) {
	cfg := model.DefaultScheduleConfig(uuid.New())
	saturday := monday.AddDate(0, 0, 5)

	got := slices.Collect(Slots(cfg, model.DateRange{From: saturday, To: saturday.AddDate(0, 0, 1)}, time.UTC))
	assert.Empty(t, got)

	friday := monday.AddDate(0, 0, 4)
	got = slices.Collect(Slots(cfg, model.DateRange{From: friday, To: friday}, time.UTC))
	require.Len(t, got, 18)
	assert.Equal(t, time.Date(2024, 5, 10, 16, 30, 0, 0, time.UTC), got[len(got)-1])
}

func TestSlotsHalfOpenDayWindow(t *testing.T) {
	cfg := mondayOnly("08:00", "12:00")
	start := model.MustTimeOfDay("08:00")
	cfg.Weekly[time.Monday].End = nil
	cfg.Weekly[time.Monday].Start = &start

	assert.Empty(t, slices.Collect(Slots(cfg, model.DateRange{From: monday, To: monday}, time.UTC)))
}

func TestSlotsStepPastEnd(t *testing.T) {
	cfg := mondayOnly("08:00", "09:10")
	cfg.SlotMinutes = 20

	got := slices.Collect(Slots(cfg, model.DateRange{From: monday, To: monday}, time.UTC))
	require.Len(t, got, 4)
	assert.Equal(t, time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC), got[3])
}

func TestSlotsEarlyStop(t *testing.T) {
	cfg := model.DefaultScheduleConfig(uuid.New())

	n := 0
	for range Slots(cfg, model.DateRange{From: monday, To: monday.AddDate(0, 0, 30)}, time.UTC) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestSlotsUseLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	cfg := mondayOnly("08:00", "08:30")

	got := slices.Collect(Slots(cfg, model.DateRange{From: monday, To: monday}, loc))
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2024, 5, 6, 11, 0, 0, 0, time.UTC), got[0].UTC())
}

func TestSlotsZeroDuration(t *testing.T) {
	cfg := mondayOnly("08:00", "12:00")
	cfg.SlotMinutes = 0
	assert.Empty(t, slices.Collect(Slots(cfg, model.DateRange{From: monday, To: monday}, time.UTC)))
}
