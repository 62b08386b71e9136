package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docktorek/docktorek-api/internal/http/respond"
	"github.com/docktorek/docktorek-api/internal/identity"
	"github.com/docktorek/docktorek-api/internal/schedule"
	"github.com/docktorek/docktorek-api/pkg/logging"
)

// WindowLister supplies a doctor's active availability for directory listings.
type WindowLister interface {
	ListFor(ctx context.Context, doctorID uuid.UUID, day *schedule.Weekday) ([]*schedule.AvailabilityWindow, error)
}

// Handler handles HTTP requests for the doctors directory
type Handler struct {
	repo    Repository
	windows WindowLister
	logger  *logging.Logger
}

// NewHandler creates a new profile handler
func NewHandler(repo Repository, windows WindowLister, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, windows: windows, logger: logger}
}

// DoctorListing is a directory entry with the doctor's declared availability.
type DoctorListing struct {
	*Doctor
	Availability []*schedule.AvailabilityWindow `json:"availability"`
}

// ListDoctorsResponse is the response for listing doctors
type ListDoctorsResponse struct {
	Doctors []*DoctorListing `json:"doctors"`
	Count   int              `json:"count"`
}

// ListDoctors handles GET /api/doctors requests
func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.repo.ListDoctors(r.Context())
	if err != nil {
		h.logger.Error("failed to list doctors", "error", err)
		respond.Error(w, http.StatusServiceUnavailable, "unavailable", "could not load doctors")
		return
	}

	listings := make([]*DoctorListing, 0, len(doctors))
	for _, d := range doctors {
		listings = append(listings, h.listing(r.Context(), d))
	}
	respond.JSON(w, http.StatusOK, ListDoctorsResponse{Doctors: listings, Count: len(listings)})
}

// GetDoctor handles GET /api/doctors/{doctorID} requests
func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid doctor id")
		return
	}
	doctor, err := h.repo.GetDoctor(r.Context(), doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			respond.Error(w, http.StatusNotFound, "not_found", "doctor not found")
			return
		}
		h.logger.Error("failed to get doctor", "error", err, "doctor_id", doctorID)
		respond.Error(w, http.StatusServiceUnavailable, "unavailable", "could not load doctor")
		return
	}
	respond.JSON(w, http.StatusOK, h.listing(r.Context(), doctor))
}

// FavoriteRequest adds a doctor to the caller's favorites.
type FavoriteRequest struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Notes    string    `json:"notes"`
}

// FavoritesResponse is the response for listing favorites
type FavoritesResponse struct {
	Favorites []*FavoriteListing `json:"favorites"`
	Count     int                `json:"count"`
}

// ListFavorites handles GET /api/patient/favorites
func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	caller, ok := patientCaller(w, r)
	if !ok {
		return
	}
	favorites, err := h.repo.ListFavorites(r.Context(), caller.ID)
	if err != nil {
		h.logger.Error("failed to list favorites", "error", err, "patient_id", caller.ID)
		respond.Error(w, http.StatusServiceUnavailable, "unavailable", "could not load favorites")
		return
	}
	if favorites == nil {
		favorites = []*FavoriteListing{}
	}
	respond.JSON(w, http.StatusOK, FavoritesResponse{Favorites: favorites, Count: len(favorites)})
}

// AddFavorite handles POST /api/patient/favorites
func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	caller, ok := patientCaller(w, r)
	if !ok {
		return
	}
	var req FavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.DoctorID == uuid.Nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "doctor_id is required")
		return
	}
	favorite := &Favorite{PatientID: caller.ID, DoctorID: req.DoctorID, Notes: req.Notes}
	if err := h.repo.AddFavorite(r.Context(), favorite); err != nil {
		h.writeFavoriteError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, favorite)
}

// RemoveFavorite handles DELETE /api/patient/favorites/{doctorID}
func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	caller, ok := patientCaller(w, r)
	if !ok {
		return
	}
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid doctor id")
		return
	}
	if err := h.repo.RemoveFavorite(r.Context(), caller.ID, doctorID); err != nil {
		h.writeFavoriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeFavoriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAlreadyFavorite):
		respond.Error(w, http.StatusConflict, "already_favorite", err.Error())
	case errors.Is(err, ErrDoctorNotFound):
		respond.Error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrFavoriteNotFound):
		respond.Error(w, http.StatusNotFound, "not_found", err.Error())
	default:
		h.logger.Error("favorite operation failed", "error", err)
		respond.Error(w, http.StatusServiceUnavailable, "unavailable", "favorites storage unavailable")
	}
}

func patientCaller(w http.ResponseWriter, r *http.Request) (identity.Caller, bool) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing caller identity")
		return identity.Caller{}, false
	}
	if caller.Role != identity.RolePatient {
		respond.Error(w, http.StatusForbidden, "forbidden", "only patients keep favorite doctors")
		return identity.Caller{}, false
	}
	return caller, true
}

func (h *Handler) listing(ctx context.Context, d *Doctor) *DoctorListing {
	entry := &DoctorListing{Doctor: d, Availability: []*schedule.AvailabilityWindow{}}
	if h.windows == nil {
		return entry
	}
	windows, err := h.windows.ListFor(ctx, d.ID, nil)
	if err != nil {
		// Directory listings degrade to profile data only.
		h.logger.Warn("failed to attach availability", "error", err, "doctor_id", d.ID)
		return entry
	}
	if windows != nil {
		entry.Availability = windows
	}
	return entry
}
