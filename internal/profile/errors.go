package profile

import "errors"

var (
	// ErrProfileNotFound is returned when a profile is not found
	ErrProfileNotFound = errors.New("profile not found")

	// ErrDoctorNotFound is returned when the id does not belong to a doctor
	ErrDoctorNotFound = errors.New("doctor not found")

	// ErrAlreadyFavorite is returned when the patient already favorited the doctor
	ErrAlreadyFavorite = errors.New("doctor already in favorites")

	// ErrFavoriteNotFound is returned when the patient has no favorite for the doctor
	ErrFavoriteNotFound = errors.New("favorite not found")
)
