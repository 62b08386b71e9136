// Package schedule maintains doctor availability windows, the recurring
// weekly blocks of bookable time that appointments are validated against.
package schedule

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docktorek/docktorek-api/internal/interval"
)

// Weekday is a lowercase day name as stored in the database.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

var weekdayNames = map[Weekday]bool{
	Monday: true, Tuesday: true, Wednesday: true, Thursday: true,
	Friday: true, Saturday: true, Sunday: true,
}

// ParseWeekday normalizes and validates a day name.
func ParseWeekday(s string) (Weekday, error) {
	day := Weekday(strings.ToLower(strings.TrimSpace(s)))
	if !weekdayNames[day] {
		return "", ErrInvalidDay
	}
	return day, nil
}

// Valid reports whether the weekday is one of the seven day names.
func (w Weekday) Valid() bool {
	return weekdayNames[w]
}

// WeekdayOf maps a calendar date to its day name.
func WeekdayOf(t time.Time) Weekday {
	switch t.Weekday() {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// AvailabilityWindow is a recurring block of bookable time declared by a
// doctor for one weekday.
type AvailabilityWindow struct {
	ID           uuid.UUID          `json:"id"`
	DoctorID     uuid.UUID          `json:"doctor_id"`
	Day          Weekday            `json:"day_of_week"`
	Start        interval.TimeOfDay `json:"start_time"`
	End          interval.TimeOfDay `json:"end_time"`
	SlotDuration int                `json:"slot_duration"`
	Active       bool               `json:"is_available"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Range returns the window's daily time range.
func (w *AvailabilityWindow) Range() interval.Range {
	return interval.Range{Start: w.Start, End: w.End}
}

// CreateWindowRequest is the request body for declaring a new window.
type CreateWindowRequest struct {
	Day          string `json:"day_of_week"`
	Start        string `json:"start_time"`
	End          string `json:"end_time"`
	SlotDuration int    `json:"slot_duration"`
	Active       *bool  `json:"is_available,omitempty"`
}

// Window parses the request into an unsaved window. The window is active
// unless the request says otherwise.
func (r *CreateWindowRequest) Window(doctorID uuid.UUID) (*AvailabilityWindow, error) {
	day, err := ParseWeekday(r.Day)
	if err != nil {
		return nil, err
	}
	start, err := interval.ParseTimeOfDay(r.Start)
	if err != nil {
		return nil, ErrInvalidTimeRange
	}
	end, err := interval.ParseTimeOfDay(r.End)
	if err != nil {
		return nil, ErrInvalidTimeRange
	}
	if start >= end {
		return nil, ErrInvalidTimeRange
	}
	if r.SlotDuration <= 0 {
		return nil, ErrInvalidSlotDuration
	}
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &AvailabilityWindow{
		DoctorID:     doctorID,
		Day:          day,
		Start:        start,
		End:          end,
		SlotDuration: r.SlotDuration,
		Active:       active,
	}, nil
}

// UpdateWindowRequest is a partial update. Nil fields are left unchanged.
type UpdateWindowRequest struct {
	Day          *string `json:"day_of_week,omitempty"`
	Start        *string `json:"start_time,omitempty"`
	End          *string `json:"end_time,omitempty"`
	SlotDuration *int    `json:"slot_duration,omitempty"`
	Active       *bool   `json:"is_available,omitempty"`
}

// Apply patches the window in place, validating the resulting shape.
func (r *UpdateWindowRequest) Apply(w *AvailabilityWindow) error {
	if r.Day != nil {
		day, err := ParseWeekday(*r.Day)
		if err != nil {
			return err
		}
		w.Day = day
	}
	if r.Start != nil {
		start, err := interval.ParseTimeOfDay(*r.Start)
		if err != nil {
			return ErrInvalidTimeRange
		}
		w.Start = start
	}
	if r.End != nil {
		end, err := interval.ParseTimeOfDay(*r.End)
		if err != nil {
			return ErrInvalidTimeRange
		}
		w.End = end
	}
	if w.Start >= w.End {
		return ErrInvalidTimeRange
	}
	if r.SlotDuration != nil {
		if *r.SlotDuration <= 0 {
			return ErrInvalidSlotDuration
		}
		w.SlotDuration = *r.SlotDuration
	}
	if r.Active != nil {
		w.Active = *r.Active
	}
	return nil
}
