package appointment

import "errors"

var (
	// ErrInvalidDate is returned when a date is not a valid YYYY-MM-DD value
	ErrInvalidDate = errors.New("date must be a valid YYYY-MM-DD value")

	// ErrInvalidTimeRange is returned when times do not parse or start >= end
	ErrInvalidTimeRange = errors.New("start time must be before end time")

	// ErrInvalidStatus is returned when a status is not an enumerated value
	ErrInvalidStatus = errors.New("unknown appointment status")

	// ErrPastDate is returned when a booking targets a date before today
	ErrPastDate = errors.New("date must not be in the past")

	// ErrNotFound is returned when an appointment is not found
	ErrNotFound = errors.New("appointment not found")

	// ErrUnknownDoctor is returned when the booking references a doctor that
	// does not exist
	ErrUnknownDoctor = errors.New("doctor not found")

	// ErrForbidden is returned when the caller is not a party to the
	// appointment or lacks the required role
	ErrForbidden = errors.New("caller may not act on this appointment")

	// ErrNotAvailable is returned when no active availability window covers
	// the requested time
	ErrNotAvailable = errors.New("doctor is not available at the requested time")

	// ErrSlotConflict is returned when the requested time overlaps an
	// existing non-cancelled appointment
	ErrSlotConflict = errors.New("requested time overlaps an existing appointment")

	// ErrInvalidTransition is returned for a status change the state machine
	// does not allow
	ErrInvalidTransition = errors.New("status transition not allowed")

	// ErrPastAppointment is returned when mutating an appointment whose date
	// has already passed
	ErrPastAppointment = errors.New("appointment date has already passed")

	// ErrUnavailable is returned on storage timeouts and transient failures;
	// callers may retry with backoff
	ErrUnavailable = errors.New("appointment storage unavailable")
)
