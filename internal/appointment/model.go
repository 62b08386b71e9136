// Package appointment drives the appointment lifecycle: booking against
// declared availability, overlap rejection, the status state machine and free
// slot computation.
package appointment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/docktorek/docktorek-api/internal/interval"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// transitions is the total state machine: a missing entry means the
// transition is illegal. Forward progress moves one step at a time;
// cancelled and no_show absorb from any non-terminal state.
var transitions = map[Status]map[Status]bool{
	StatusScheduled:  {StatusConfirmed: true, StatusCancelled: true, StatusNoShow: true},
	StatusConfirmed:  {StatusInProgress: true, StatusCancelled: true, StatusNoShow: true},
	StatusInProgress: {StatusCompleted: true, StatusCancelled: true, StatusNoShow: true},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusNoShow:     {},
}

// ParseStatus validates a status value.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := transitions[status]; !ok {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// CanTransitionTo reports whether the state machine allows moving to next.
func (s Status) CanTransitionTo(next Status) bool {
	return transitions[s][next]
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Active reports whether the appointment still occupies its time slot.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed || s == StatusInProgress
}

// ActiveStatuses are the states that block other bookings.
var ActiveStatuses = []Status{StatusScheduled, StatusConfirmed, StatusInProgress}

// Date is a calendar day, serialized as YYYY-MM-DD and stored at UTC midnight.
type Date time.Time

// ParseDate parses a YYYY-MM-DD value.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date(t), nil
}

// DateOf truncates an instant to its calendar day in UTC.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
}

// Time returns the day as UTC midnight.
func (d Date) Time() time.Time { return time.Time(d) }

// Before reports calendar ordering.
func (d Date) Before(other Date) bool { return d.Time().Before(other.Time()) }

func (d Date) String() string { return d.Time().Format("2006-01-02") }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Appointment is one scheduled encounter between a patient and a doctor.
type Appointment struct {
	ID           uuid.UUID          `json:"id"`
	PatientID    uuid.UUID          `json:"patient_id"`
	DoctorID     uuid.UUID          `json:"doctor_id"`
	Date         Date               `json:"date"`
	Start        interval.TimeOfDay `json:"start_time"`
	End          interval.TimeOfDay `json:"end_time"`
	Status       Status             `json:"status"`
	Reason       string             `json:"reason,omitempty"`
	Notes        string             `json:"notes,omitempty"`
	ReceiptToken string             `json:"receipt_token,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Range returns the appointment's time range within its day.
func (a *Appointment) Range() interval.Range {
	return interval.Range{Start: a.Start, End: a.End}
}

// AuditEntry records one lifecycle change, keeping the notes field free of
// bookkeeping text.
type AuditEntry struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	ActorID       uuid.UUID `json:"actor_id"`
	PrevStatus    Status    `json:"previous_status"`
	NewStatus     Status    `json:"new_status"`
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateRequest is the request body for booking an appointment.
type CreateRequest struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Start    string    `json:"start_time"`
	End      string    `json:"end_time"`
	Reason   string    `json:"reason"`
	Notes    string    `json:"notes"`
}

// RescheduleRequest carries the new timing for an existing appointment.
type RescheduleRequest struct {
	Date  string `json:"date"`
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

// StatusRequest changes an appointment's lifecycle state.
type StatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// NotesRequest appends to or replaces the appointment's free-text notes.
type NotesRequest struct {
	Mode string `json:"mode"`
	Text string `json:"text"`
}

type timing struct {
	date       Date
	start, end interval.TimeOfDay
}

func parseTiming(date, start, end string) (timing, error) {
	d, err := ParseDate(date)
	if err != nil {
		return timing{}, err
	}
	s, err := interval.ParseTimeOfDay(start)
	if err != nil {
		return timing{}, ErrInvalidTimeRange
	}
	e, err := interval.ParseTimeOfDay(end)
	if err != nil {
		return timing{}, ErrInvalidTimeRange
	}
	if s >= e {
		return timing{}, ErrInvalidTimeRange
	}
	return timing{date: d, start: s, end: e}, nil
}
