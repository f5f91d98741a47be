package schedule

import (
	"iter"
	"time"

	"github.com/jwalitptl/agenda-api/internal/model"
)

// Slots yields the candidate start times of cfg over the closed date range,
// in loc, in ascending order. It does not look at bookings. The sequence is
// lazy and can be ranged over any number of times with identical results.
func Slots(cfg model.ScheduleConfig, dates model.DateRange, loc *time.Location) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if cfg.SlotMinutes <= 0 {
			return
		}
		step := model.TimeOfDay(cfg.SlotMinutes)

		day := time.Date(dates.From.Year(), dates.From.Month(), dates.From.Day(), 0, 0, 0, 0, loc)
		last := time.Date(dates.To.Year(), dates.To.Month(), dates.To.Day(), 0, 0, 0, 0, loc)

		for ; !day.After(last); day = day.AddDate(0, 0, 1) {
			win := cfg.Weekly.Day(day.Weekday())
			if !win.IsOpen() {
				continue
			}
			for t := *win.Start; t < *win.End; t += step {
				if cfg.InBreak(t) {
					continue
				}
				if !yield(t.On(day, loc)) {
					return
				}
			}
		}
	}
}
