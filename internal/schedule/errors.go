package schedule

import "errors"

var (
	// ErrInvalidDay is returned when a day name is not one of the seven weekdays
	ErrInvalidDay = errors.New("unknown weekday")

	// ErrInvalidTimeRange is returned when start/end do not parse or start >= end
	ErrInvalidTimeRange = errors.New("start time must be before end time")

	// ErrInvalidSlotDuration is returned when the slot duration is not positive
	ErrInvalidSlotDuration = errors.New("slot duration must be a positive number of minutes")

	// ErrDuplicateWindow is returned when a window with the same doctor,
	// weekday and start time already exists
	ErrDuplicateWindow = errors.New("availability window with this start time already exists")

	// ErrWindowNotFound is returned when a window is not found
	ErrWindowNotFound = errors.New("availability window not found")

	// ErrNotOwner is returned when the caller does not own the window
	ErrNotOwner = errors.New("caller does not own this availability window")
)
