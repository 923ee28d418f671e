package domain

import "time"

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
)

// Reservation is a time-ranged claim of units against a rack.
type Reservation struct {
	ID            string
	RackID        string
	RequestID     string
	CompanyID     string
	Period        DateRange
	ReservedUnits int
	Status        ReservationStatus
	// OccupancyApplied is set once the reservation counts in the rack's live
	// occupancy, either at approval or by activation on its start date.
	OccupancyApplied bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Final reports whether the reservation can no longer change.
func (r Reservation) Final() bool {
	return r.Status == ReservationCompleted || r.Status == ReservationCancelled
}

// DateRange is the half-open day interval [Start, End). A nil End is open ended.
type DateRange struct {
	Start time.Time
	End   *time.Time
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDateRange normalises both bounds to days and rejects an end before the start.
func NewDateRange(start time.Time, end *time.Time) (DateRange, error) {
	r := DateRange{Start: Day(start)}
	if end != nil {
		e := Day(*end)
		if e.Before(r.Start) {
			return DateRange{}, Errorf(ErrInvalidInput, "end date %s is before start date %s",
				e.Format(time.DateOnly), r.Start.Format(time.DateOnly))
		}
		r.End = &e
	}
	return r, nil
}

// Overlaps reports whether the two half-open ranges share at least one instant.
// A range ending on day D does not overlap one starting on day D.
func (r DateRange) Overlaps(o DateRange) bool {
	if r.End != nil && !r.End.After(o.Start) {
		return false
	}
	if o.End != nil && !o.End.After(r.Start) {
		return false
	}
	if r.Empty() || o.Empty() {
		return false
	}
	return true
}

// Empty reports a zero-length range, which occupies no time.
func (r DateRange) Empty() bool {
	return r.End != nil && r.End.Equal(r.Start)
}

// Covers reports whether day falls inside the half-open range.
func (r DateRange) Covers(day time.Time) bool {
	day = Day(day)
	if day.Before(r.Start) {
		return false
	}
	return r.End == nil || day.Before(*r.End)
}

// ActiveOn reports whether the range counts as live on day. The end date is
// inclusive here: storage booked through day D still occupies the rack on D.
func (r DateRange) ActiveOn(day time.Time) bool {
	day = Day(day)
	if day.Before(r.Start) {
		return false
	}
	return r.End == nil || !day.After(*r.End)
}

func (r DateRange) String() string {
	end := "open"
	if r.End != nil {
		end = r.End.Format(time.DateOnly)
	}
	return "[" + r.Start.Format(time.DateOnly) + ", " + end + ")"
}
