package appointment

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

// Handler handles HTTP requests for appointments
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new appointment handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Create handles POST /api/appointments
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticated(w, r)
	if !ok {
		return
	}
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	appt, err := h.service.Create(r.Context(), caller, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, appt)
}

// ListResponse is the response for listing appointments
type ListResponse struct {
	Appointments []*Appointment `json:"appointments"`
	Count        int            `json:"count"`
}

// List handles GET /api/appointments?status=&date=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticated(w, r)
	if !ok {
		return
	}
	appts, err := h.service.List(r.Context(), caller, r.URL.Query().Get("status"), r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	respond.JSON(w, http.StatusOK, ListResponse{Appointments: appts, Count: len(appts)})
}

// Get handles GET /api/appointments/{appointmentID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := authenticatedWithID(w, r)
	if !ok {
		return
	}
	appt, err := h.service.Get(r.Context(), caller, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, appt)
}

// Cancel handles PATCH /api/appointments/{appointmentID}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := authenticatedWithID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid request body")
			return
		}
	}
	appt, err := h.service.Cancel(r.Context(), caller, id, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, appt)
}

// Reschedule handles PATCH /api/appointments/{appointmentID}/reschedule
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := authenticatedWithID(w, r)
	if !ok {
		return
	}
	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	appt, err := h.service.Reschedule(r.Context(), caller, id, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, appt)
}

// ModifyStatus handles PATCH /api/appointments/{appointmentID}/status
func (h *Handler) ModifyStatus(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := authenticatedWithID(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	appt, err := h.service.ModifyStatus(r.Context(), caller, id, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, appt)
}

// Notes handles PATCH /api/appointments/{appointmentID}/notes
func (h *Handler) Notes(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := authenticatedWithID(w, r)
	if !ok {
		return
	}
	var req NotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	var (
		appt *Appointment
		err  error
	)
	switch req.Mode {
	case "append":
		appt, err = h.service.AppendNotes(r.Context(), caller, id, req.Text)
	case "replace":
		appt, err = h.service.ReplaceNotes(r.Context(), caller, id, req.Text)
	default:
		respond.Error(w, http.StatusBadRequest, "invalid_request", "mode must be append or replace")
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, appt)
}

// AuditResponse is the response for an appointment's audit trail
type AuditResponse struct {
	Entries []*AuditEntry `json:"entries"`
	Count   int           `json:"count"`
}

// Audit handles GET /api/appointments/{appointmentID}/audit
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := authenticatedWithID(w, r)
	if !ok {
		return
	}
	entries, err := h.service.Audit(r.Context(), caller, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []*AuditEntry{}
	}
	respond.JSON(w, http.StatusOK, AuditResponse{Entries: entries, Count: len(entries)})
}

// SlotsResponse is the response for a doctor's free slots
type SlotsResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Slots    []Slot    `json:"slots"`
}

// FreeSlots handles GET /api/doctors/{doctorID}/slots?date=YYYY-MM-DD
func (h *Handler) FreeSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid doctor id")
		return
	}
	date, err := ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "date must be a valid YYYY-MM-DD value")
		return
	}
	slots, err := h.service.FreeSlots(r.Context(), doctorID, date)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if slots == nil {
		slots = []Slot{}
	}
	respond.JSON(w, http.StatusOK, SlotsResponse{DoctorID: doctorID, Date: date.String(), Slots: slots})
}

func authenticated(w http.ResponseWriter, r *http.Request) (identity.Caller, bool) {
	caller, ok := identity.CallerFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing caller identity")
		return identity.Caller{}, false
	}
	return caller, true
}

func authenticatedWithID(w http.ResponseWriter, r *http.Request) (identity.Caller, uuid.UUID, bool) {
	caller, ok := authenticated(w, r)
	if !ok {
		return identity.Caller{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_request", "invalid appointment id")
		return identity.Caller{}, uuid.Nil, false
	}
	return caller, id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidTimeRange),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrPastDate):
		respond.Error(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownDoctor):
		respond.Error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrForbidden):
		respond.Error(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, ErrNotAvailable):
		respond.Error(w, http.StatusUnprocessableEntity, "not_available", err.Error())
	case errors.Is(err, ErrSlotConflict):
		respond.Error(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		respond.Error(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, ErrPastAppointment):
		respond.Error(w, http.StatusUnprocessableEntity, "past_appointment", err.Error())
	case errors.Is(err, ErrUnavailable):
		respond.Error(w, http.StatusServiceUnavailable, "unavailable", "please retry shortly")
	default:
		h.logger.Error("appointment operation failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
