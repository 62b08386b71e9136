package schedule

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docktorek/docktorek-api/internal/http/respond"
	"github.com/docktorek/docktorek-api/internal/identity"
	"github.com/docktorek/docktorek-api/pkg/logging"
)

// Handler handles HTTP requests for availability windows
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new schedule handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// ListOwn handles GET /api/doctor/availability
func (h *Handler) ListOwn(w http.ResponseWriter, r *http.Request) {
	caller, ok := doctorCaller(w, r)
	if !ok {
		return
	}
	windows, err := h.service.ListOwned(r.Context(), caller.ID)
	if err != nil {
		h.logger.Error("failed to list availability", "error", err, "doctor_id", caller.ID)
		respond.Error(w, http.StatusServiceUnavailable, "unavailable", "could not load availability")
		return
	}
	respond.JSON(w, http.StatusOK, listResponse{Windows: windows, Count: len(windows)})
}

// ListPublic handles GET /api/availability?doctor=&day=
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(r.URL.Query().Get("doctor"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "doctor query parameter must be a valid id")
		return
	}
	var day *Weekday
	if raw := r.URL.Query().Get("day"); raw != "" {
		parsed, err := ParseWeekday(raw)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid_request", "unknown weekday")
			return
		}
		day = &parsed
	}
	windows, err := h.service.ListFor(r.Context(), doctorID, day)
	if err != nil {
		h.logger.Error("failed to list availability", "error", err, "doctor_id", doctorID)
		respond.Error(w, http.StatusServiceUnavailable, "unavailable", "could not load availability")
		return
	}
	respond.JSON(w, http.StatusOK, listResponse{Windows: windows, Count: len(windows)})
}

// Create handles POST /api/doctor/availability
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := doctorCaller(w, r)
	if !ok {
		return
	}
	var req CreateWindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	window, err := h.service.Add(r.Context(), caller.ID, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, window)
}

// Update handles PUT /api/doctor/availability/{windowID}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := doctorCaller(w, r)
	if !ok {
		return
	}
	windowID, err := uuid.Parse(chi.URLParam(r, "windowID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid window id")
		return
	}
	var req UpdateWindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	window, err := h.service.Update(r.Context(), windowID, caller.ID, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, window)
}

// Delete handles DELETE /api/doctor/availability/{windowID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := doctorCaller(w, r)
	if !ok {
		return
	}
	windowID, err := uuid.Parse(chi.URLParam(r, "windowID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid window id")
		return
	}
	if err := h.service.Remove(r.Context(), windowID, caller.ID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type listResponse struct {
	Windows []*AvailabilityWindow `json:"windows"`
	Count   int                   `json:"count"`
}

func doctorCaller(w http.ResponseWriter, r *http.Request) (identity.Caller, bool) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing caller identity")
		return identity.Caller{}, false
	}
	if caller.Role != identity.RoleDoctor {
		respond.Error(w, http.StatusForbidden, "forbidden", "only doctors can manage availability")
		return identity.Caller{}, false
	}
	return caller, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidDay), errors.Is(err, ErrInvalidTimeRange), errors.Is(err, ErrInvalidSlotDuration):
		respond.Error(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, ErrDuplicateWindow):
		respond.Error(w, http.StatusConflict, "duplicate_window", err.Error())
	case errors.Is(err, ErrWindowNotFound):
		respond.Error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrNotOwner):
		respond.Error(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		h.logger.Error("schedule operation failed", "error", err)
		respond.Error(w, http.StatusServiceUnavailable, "unavailable", "availability storage unavailable")
	}
}
