// Package profile stores patient and doctor account profiles and serves the
// public doctors directory.
package profile

import (
	"time"

	"github.com/google/uuid"

	"github.com/docktorek/docktorek-api/internal/identity"
)

// Profile is the account record shared by patients and doctors.
type Profile struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Role      identity.Role `json:"user_type"`
	CreatedAt time.Time     `json:"created_at"`
}

// Doctor is a profile with the doctor-specific directory fields.
type Doctor struct {
	Profile
	Specialty     string  `json:"specialty"`
	Hospital      string  `json:"hospital"`
	AverageRating float64 `json:"average_rating"`
}

// Favorite marks a doctor a patient wants quick access to. One row per
// (patient, doctor) pair.
type Favorite struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FavoriteListing is a favorite joined with the doctor's directory entry.
type FavoriteListing struct {
	*Favorite
	Doctor *Doctor `json:"doctor"`
}
