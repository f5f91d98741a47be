package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for persisted records
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DateLayout is the wire format of calendar dates in query strings.
const DateLayout = "2006-01-02"

// DateRange is a closed range of calendar dates.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Days returns the number of calendar days covered by the range.
func (r DateRange) Days() int {
	from := time.Date(r.From.Year(), r.From.Month(), r.From.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(r.To.Year(), r.To.Month(), r.To.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours()/24) + 1
}

// Bounds returns the half-open instant interval [start of From, start of the
// day after To) in loc.
func (r DateRange) Bounds(loc *time.Location) (time.Time, time.Time) {
	start := time.Date(r.From.Year(), r.From.Month(), r.From.Day(), 0, 0, 0, 0, loc)
	end := time.Date(r.To.Year(), r.To.Month(), r.To.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return start, end
}

// ParseDateRange parses two YYYY-MM-DD strings into a range.
func ParseDateRange(from, to string) (DateRange, error) {
	f, err := time.Parse(DateLayout, from)
	if err != nil {
		return DateRange{}, err
	}
	t, err := time.Parse(DateLayout, to)
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{From: f, To: t}, nil
}
