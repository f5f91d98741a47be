package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeOfDay is a wall-clock time stored as minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS" (seconds are dropped).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	limits := []int{23, 59, 59}
	vals := make([]int, len(parts))
	for i, p := range parts {
		if len(p) != 2 {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > limits[i] {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		vals[i] = v
	}
	return TimeOfDay(vals[0]*60 + vals[1]), nil
}

func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On returns the instant at this time of day on the given date in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

// Of returns the time of day of an instant in loc, truncated to the minute.
func Of(ts time.Time, loc *time.Location) TimeOfDay {
	ts = ts.In(loc)
	return TimeOfDay(ts.Hour()*60 + ts.Minute())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

func (t *TimeOfDay) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// DayWindow is one weekday's working window. A day with either bound unset
// has no working hours.
type DayWindow struct {
	Start *TimeOfDay `json:"start"`
	End   *TimeOfDay `json:"end"`
}

func (w DayWindow) IsOpen() bool {
	return w.Start != nil && w.End != nil
}

// Window builds an open DayWindow.
func Window(start, end string) DayWindow {
	s, e := MustTimeOfDay(start), MustTimeOfDay(end)
	return DayWindow{Start: &s, End: &e}
}

// WeeklyTemplate holds a DayWindow per weekday, indexed by time.Weekday.
type WeeklyTemplate [7]DayWindow

var weekdayKeys = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

func (w WeeklyTemplate) Day(d time.Weekday) DayWindow {
	return w[d]
}

func (w WeeklyTemplate) MarshalJSON() ([]byte, error) {
	m := make(map[string]DayWindow, len(weekdayKeys))
	for i, key := range weekdayKeys {
		m[key] = w[i]
	}
	return json.Marshal(m)
}

func (w *WeeklyTemplate) UnmarshalJSON(b []byte) error {
	var m map[string]DayWindow
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var out WeeklyTemplate
	for key, win := range m {
		idx := -1
		for i, k := range weekdayKeys {
			if strings.EqualFold(k, key) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("unknown weekday %q", key)
		}
		out[idx] = win
	}
	*w = out
	return nil
}

func (w WeeklyTemplate) Value() (driver.Value, error) {
	b, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (w *WeeklyTemplate) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, w)
	case string:
		return json.Unmarshal([]byte(v), w)
	case nil:
		*w = WeeklyTemplate{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into WeeklyTemplate", src)
}

const DefaultSlotMinutes = 30

// ScheduleConfig is a professional's weekly availability template.
type ScheduleConfig struct {
	ProfessionalID uuid.UUID      `db:"professional_id" json:"professional_id"`
	Weekly         WeeklyTemplate `db:"weekly_windows" json:"weekly"`
	SlotMinutes    int            `db:"slot_minutes" json:"slot_duration"`
	BreakStart     *TimeOfDay     `db:"break_start" json:"break_start"`
	BreakEnd       *TimeOfDay     `db:"break_end" json:"break_end"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// HasBreak reports whether a daily break window is configured.
func (c ScheduleConfig) HasBreak() bool {
	return c.BreakStart != nil && c.BreakEnd != nil
}

// InBreak reports whether t falls inside [break_start, break_end).
func (c ScheduleConfig) InBreak(t TimeOfDay) bool {
	return c.HasBreak() && *c.BreakStart <= t && t < *c.BreakEnd
}

// DefaultScheduleConfig is the template a professional gets on first access:
// Monday to Thursday 08:00-18:00, Friday 08:00-17:00, weekend closed.
func DefaultScheduleConfig(professionalID uuid.UUID) ScheduleConfig {
	var weekly WeeklyTemplate
	for d := time.Monday; d <= time.Thursday; d++ {
		weekly[d] = Window("08:00", "18:00")
	}
	weekly[time.Friday] = Window("08:00", "17:00")
	return ScheduleConfig{
		ProfessionalID: professionalID,
		Weekly:         weekly,
		SlotMinutes:    DefaultSlotMinutes,
	}
}

// UpdateScheduleRequest is the full-replace payload for a schedule.
type UpdateScheduleRequest struct {
	Weekly      WeeklyTemplate `json:"weekly"`
	SlotMinutes int            `json:"slot_duration" binding:"omitempty,min=5,max=480"`
	BreakStart  *TimeOfDay     `json:"break_start"`
	BreakEnd    *TimeOfDay     `json:"break_end"`
}
