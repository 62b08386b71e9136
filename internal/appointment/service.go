package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/docktorek/docktorek-api/internal/events"
	"github.com/docktorek/docktorek-api/internal/identity"
	"github.com/docktorek/docktorek-api/internal/interval"
	"github.com/docktorek/docktorek-api/internal/observability/metrics"
	"github.com/docktorek/docktorek-api/internal/profile"
	"github.com/docktorek/docktorek-api/internal/receipt"
	"github.com/docktorek/docktorek-api/internal/schedule"
	"github.com/docktorek/docktorek-api/pkg/clock"
	"github.com/docktorek/docktorek-api/pkg/logging"
)

var appointmentTracer = otel.Tracer("docktorek.internal.appointment")

// WindowSource supplies the active availability windows bookings are
// validated against.
type WindowSource interface {
	ListFor(ctx context.Context, doctorID uuid.UUID, day *schedule.Weekday) ([]*schedule.AvailabilityWindow, error)
}

// Directory resolves party details for receipt snapshots and doctor checks.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*profile.Doctor, error)
}

// SlotCache is a read-through cache over free slot computation. Lookups that
// miss fall back to direct computation; failures never block a booking.
type SlotCache interface {
	Get(ctx context.Context, doctorID uuid.UUID, date Date) ([]Slot, bool)
	Set(ctx context.Context, doctorID uuid.UUID, date Date, slots []Slot)
	Invalidate(ctx context.Context, doctorID uuid.UUID, date Date)
}

// Service owns the appointment lifecycle.
type Service struct {
	repo      Repository
	windows   WindowSource
	receipts  receipt.TokenProvider
	directory Directory
	cache     SlotCache
	metrics   *metrics.SchedulingMetrics
	clock     clock.Clock
	logger    *logging.Logger
}

// NewService constructs an appointment service.
func NewService(repo Repository, windows WindowSource, receipts receipt.TokenProvider, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointment: repository required")
	}
	if windows == nil {
		panic("appointment: window source required")
	}
	if receipts == nil {
		panic("appointment: receipt provider required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		windows:  windows,
		receipts: receipts,
		clock:    clock.Real{},
		logger:   logger,
	}
}

// WithDirectory attaches profile lookups for receipt snapshots.
func (s *Service) WithDirectory(d Directory) *Service {
	s.directory = d
	return s
}

// WithCache attaches the free slot cache.
func (s *Service) WithCache(c SlotCache) *Service {
	s.cache = c
	return s
}

// WithMetrics attaches scheduling metrics.
func (s *Service) WithMetrics(m *metrics.SchedulingMetrics) *Service {
	s.metrics = m
	return s
}

// WithClock overrides the wall clock, fixing "today" in tests.
func (s *Service) WithClock(c clock.Clock) *Service {
	if c != nil {
		s.clock = c
	}
	return s
}

func (s *Service) today() Date {
	return DateOf(s.clock.Now())
}

// Create books a new appointment for the calling patient.
func (s *Service) Create(ctx context.Context, caller identity.Caller, req *CreateRequest) (*Appointment, error) {
	ctx, span := appointmentTracer.Start(ctx, "appointment.create")
	defer span.End()
	span.SetAttributes(attribute.String("docktorek.doctor_id", req.DoctorID.String()))

	if caller.Role != identity.RolePatient {
		return nil, ErrForbidden
	}
	t, err := parseTiming(req.Date, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if t.date.Before(s.today()) {
		return nil, ErrPastDate
	}
	if s.directory != nil {
		if _, err := s.directory.GetDoctor(ctx, req.DoctorID); err != nil {
			if errors.Is(err, profile.ErrDoctorNotFound) {
				return nil, ErrUnknownDoctor
			}
			return nil, fmt.Errorf("%w: resolve doctor: %v", ErrUnavailable, err)
		}
	}
	if err := s.checkAvailability(ctx, req.DoctorID, t); err != nil {
		return nil, err
	}

	appt := &Appointment{
		ID:        uuid.New(),
		PatientID: caller.ID,
		DoctorID:  req.DoctorID,
		Date:      t.date,
		Start:     t.start,
		End:       t.end,
		Status:    StatusScheduled,
		Reason:    req.Reason,
		Notes:     req.Notes,
	}
	if err := s.mintReceipt(ctx, appt); err != nil {
		span.RecordError(err)
		return nil, err
	}

	write := Write{
		Appointment: appt,
		Audit: &AuditEntry{
			AppointmentID: appt.ID,
			ActorID:       caller.ID,
			NewStatus:     StatusScheduled,
			Note:          "appointment created",
		},
		EventType: events.TypeAppointmentCreated,
		Event:     s.eventPayload(appt, ""),
	}
	if err := s.repo.Create(ctx, write); err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrSlotConflict) {
			s.metrics.ObserveSlotConflict()
			s.metrics.ObserveAppointment("create", "conflict")
		}
		return nil, err
	}

	s.invalidate(ctx, appt.DoctorID, appt.Date)
	s.metrics.ObserveAppointment("create", "created")
	s.logger.Info("appointment created",
		"appointment_id", appt.ID, "patient_id", appt.PatientID, "doctor_id", appt.DoctorID,
		"date", appt.Date.String(), "start", appt.Start.String())
	return appt, nil
}

// Get returns an appointment visible to the caller.
func (s *Service) Get(ctx context.Context, caller identity.Caller, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParty(caller, appt) {
		return nil, ErrForbidden
	}
	return appt, nil
}

// List returns the caller's appointments, optionally filtered by status and
// date. Patients see their own bookings, doctors their own calendar.
func (s *Service) List(ctx context.Context, caller identity.Caller, statusStr, dateStr string) ([]*Appointment, error) {
	filter := ListFilter{}
	switch caller.Role {
	case identity.RolePatient:
		filter.PatientID = &caller.ID
	case identity.RoleDoctor:
		filter.DoctorID = &caller.ID
	default:
		return nil, ErrForbidden
	}
	if statusStr != "" {
		status, err := ParseStatus(statusStr)
		if err != nil {
			return nil, err
		}
		filter.Status = &status
	}
	if dateStr != "" {
		date, err := ParseDate(dateStr)
		if err != nil {
			return nil, err
		}
		filter.Date = &date
	}
	return s.repo.List(ctx, filter)
}

// Cancel marks an appointment cancelled. The optional reason lands in the
// audit trail, leaving the notes field untouched.
func (s *Service) Cancel(ctx context.Context, caller identity.Caller, id uuid.UUID, reason string) (*Appointment, error) {
	ctx, span := appointmentTracer.Start(ctx, "appointment.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("docktorek.appointment_id", id.String()))

	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParty(caller, appt) {
		return nil, ErrForbidden
	}
	if !appt.Status.CanTransitionTo(StatusCancelled) {
		return nil, ErrInvalidTransition
	}
	if appt.Date.Before(s.today()) {
		return nil, ErrPastAppointment
	}

	prev := appt.Status
	appt.Status = StatusCancelled
	if err := s.mintReceipt(ctx, appt); err != nil {
		span.RecordError(err)
		return nil, err
	}

	note := ""
	if reason != "" {
		note = "Cancellation reason: " + reason
	}
	write := Write{
		Appointment: appt,
		Audit: &AuditEntry{
			AppointmentID: appt.ID,
			ActorID:       caller.ID,
			PrevStatus:    prev,
			NewStatus:     StatusCancelled,
			Note:          note,
		},
		EventType: events.TypeAppointmentCancelled,
		Event:     s.eventPayload(appt, reason),
	}
	if err := s.repo.Update(ctx, write, false); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.invalidate(ctx, appt.DoctorID, appt.Date)
	s.metrics.ObserveTransition(string(prev), string(StatusCancelled))
	s.metrics.ObserveAppointment("cancel", "cancelled")
	s.logger.Info("appointment cancelled", "appointment_id", appt.ID, "actor_id", caller.ID)
	return appt, nil
}

// Reschedule moves an appointment to a new date and time, re-validating
// availability and overlap exactly as Create does.
func (s *Service) Reschedule(ctx context.Context, caller identity.Caller, id uuid.UUID, req *RescheduleRequest) (*Appointment, error) {
	ctx, span := appointmentTracer.Start(ctx, "appointment.reschedule")
	defer span.End()
	span.SetAttributes(attribute.String("docktorek.appointment_id", id.String()))

	t, err := parseTiming(req.Date, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if t.date.Before(s.today()) {
		return nil, ErrPastDate
	}

	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParty(caller, appt) {
		return nil, ErrForbidden
	}
	if appt.Status.Terminal() {
		return nil, ErrInvalidTransition
	}
	if err := s.checkAvailability(ctx, appt.DoctorID, t); err != nil {
		return nil, err
	}

	oldDate, oldStart, oldEnd := appt.Date, appt.Start, appt.End
	appt.Date = t.date
	appt.Start = t.start
	appt.End = t.end
	if err := s.mintReceipt(ctx, appt); err != nil {
		span.RecordError(err)
		return nil, err
	}

	write := Write{
		Appointment: appt,
		Audit: &AuditEntry{
			AppointmentID: appt.ID,
			ActorID:       caller.ID,
			PrevStatus:    appt.Status,
			NewStatus:     appt.Status,
			Note: fmt.Sprintf("rescheduled from %s %s-%s to %s %s-%s",
				oldDate, oldStart, oldEnd, appt.Date, appt.Start, appt.End),
		},
		EventType: events.TypeAppointmentRescheduled,
		Event:     s.eventPayload(appt, ""),
	}
	if err := s.repo.Update(ctx, write, true); err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrSlotConflict) {
			s.metrics.ObserveSlotConflict()
		}
		return nil, err
	}

	s.invalidate(ctx, appt.DoctorID, oldDate, appt.Date)
	s.metrics.ObserveAppointment("reschedule", "rescheduled")
	s.logger.Info("appointment rescheduled",
		"appointment_id", appt.ID, "actor_id", caller.ID, "date", appt.Date.String())
	return appt, nil
}

// ModifyStatus moves the appointment through its state machine. Only the
// appointment's doctor may change status.
func (s *Service) ModifyStatus(ctx context.Context, caller identity.Caller, id uuid.UUID, req *StatusRequest) (*Appointment, error) {
	ctx, span := appointmentTracer.Start(ctx, "appointment.modify_status")
	defer span.End()
	span.SetAttributes(attribute.String("docktorek.appointment_id", id.String()))

	newStatus, err := ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.Role != identity.RoleDoctor || caller.ID != appt.DoctorID {
		return nil, ErrForbidden
	}
	if !appt.Status.CanTransitionTo(newStatus) {
		return nil, ErrInvalidTransition
	}

	prev := appt.Status
	appt.Status = newStatus
	if err := s.mintReceipt(ctx, appt); err != nil {
		span.RecordError(err)
		return nil, err
	}

	write := Write{
		Appointment: appt,
		Audit: &AuditEntry{
			AppointmentID: appt.ID,
			ActorID:       caller.ID,
			PrevStatus:    prev,
			NewStatus:     newStatus,
			Note:          req.Note,
		},
		EventType: events.TypeAppointmentStatusChanged,
		Event:     s.eventPayload(appt, req.Note),
	}
	if err := s.repo.Update(ctx, write, false); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.invalidate(ctx, appt.DoctorID, appt.Date)
	s.metrics.ObserveTransition(string(prev), string(newStatus))
	s.metrics.ObserveAppointment("modify_status", string(newStatus))
	s.logger.Info("appointment status changed",
		"appointment_id", appt.ID, "from", prev, "to", newStatus)
	return appt, nil
}

// AppendNotes adds text to the appointment's notes.
func (s *Service) AppendNotes(ctx context.Context, caller identity.Caller, id uuid.UUID, text string) (*Appointment, error) {
	return s.editNotes(ctx, caller, id, text, false)
}

// ReplaceNotes overwrites the appointment's notes.
func (s *Service) ReplaceNotes(ctx context.Context, caller identity.Caller, id uuid.UUID, text string) (*Appointment, error) {
	return s.editNotes(ctx, caller, id, text, true)
}

func (s *Service) editNotes(ctx context.Context, caller identity.Caller, id uuid.UUID, text string, replace bool) (*Appointment, error) {
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParty(caller, appt) {
		return nil, ErrForbidden
	}

	action := "notes appended"
	switch {
	case replace:
		appt.Notes = text
		action = "notes replaced"
	case appt.Notes == "":
		appt.Notes = text
	default:
		appt.Notes += "\n" + text
	}

	write := Write{
		Appointment: appt,
		Audit: &AuditEntry{
			AppointmentID: appt.ID,
			ActorID:       caller.ID,
			PrevStatus:    appt.Status,
			NewStatus:     appt.Status,
			Note:          action,
		},
	}
	if err := s.repo.Update(ctx, write, false); err != nil {
		return nil, err
	}
	return appt, nil
}

// Audit returns the appointment's audit trail.
func (s *Service) Audit(ctx context.Context, caller identity.Caller, id uuid.UUID) ([]*AuditEntry, error) {
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParty(caller, appt) {
		return nil, ErrForbidden
	}
	return s.repo.ListAudit(ctx, id)
}

// FreeSlots computes the bookable slots for a doctor on a date. No windows
// for that weekday yields an empty list, not an error.
func (s *Service) FreeSlots(ctx context.Context, doctorID uuid.UUID, date Date) ([]Slot, error) {
	ctx, span := appointmentTracer.Start(ctx, "appointment.free_slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("docktorek.doctor_id", doctorID.String()),
		attribute.String("docktorek.date", date.String()),
	)
	started := s.clock.Now()
	defer func() {
		s.metrics.ObserveFreeSlotLatency(time.Since(started).Seconds())
	}()

	if s.cache != nil {
		if slots, ok := s.cache.Get(ctx, doctorID, date); ok {
			s.metrics.ObserveSlotCache(true)
			return slots, nil
		}
		s.metrics.ObserveSlotCache(false)
	}

	day := schedule.WeekdayOf(date.Time())
	windows, err := s.windows.ListFor(ctx, doctorID, &day)
	if err != nil {
		return nil, fmt.Errorf("%w: load availability: %v", ErrUnavailable, err)
	}
	busyAppts, err := s.repo.ListActiveForDay(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	busy := make([]interval.Range, 0, len(busyAppts))
	for _, a := range busyAppts {
		busy = append(busy, a.Range())
	}

	slots := GenerateSlots(windows, busy)
	if s.cache != nil {
		s.cache.Set(ctx, doctorID, date, slots)
	}
	return slots, nil
}

func (s *Service) checkAvailability(ctx context.Context, doctorID uuid.UUID, t timing) error {
	day := schedule.WeekdayOf(t.date.Time())
	windows, err := s.windows.ListFor(ctx, doctorID, &day)
	if err != nil {
		return fmt.Errorf("%w: load availability: %v", ErrUnavailable, err)
	}
	requested := interval.Range{Start: t.start, End: t.end}
	for _, w := range windows {
		if w.Active && interval.Within(requested, w.Range()) {
			return nil
		}
	}
	return ErrNotAvailable
}

// mintReceipt refreshes the receipt token from current appointment state.
// Minting is synchronous: a booking without a verifiable receipt must not
// commit.
func (s *Service) mintReceipt(ctx context.Context, appt *Appointment) error {
	snapshot := receipt.Snapshot{
		AppointmentID: appt.ID,
		Patient:       receipt.Party{ID: appt.PatientID},
		Doctor:        receipt.Party{ID: appt.DoctorID},
		Date:          appt.Date.String(),
		Start:         appt.Start.String(),
		End:           appt.End.String(),
		Status:        string(appt.Status),
	}
	if s.directory != nil {
		if p, err := s.directory.GetByID(ctx, appt.PatientID); err == nil {
			snapshot.Patient.Name = p.Name
			snapshot.Patient.Email = p.Email
		}
		if d, err := s.directory.GetDoctor(ctx, appt.DoctorID); err == nil {
			snapshot.Doctor.Name = d.Name
			snapshot.Doctor.Specialty = d.Specialty
			snapshot.Doctor.Hospital = d.Hospital
		}
	}
	token, err := s.receipts.Mint(snapshot)
	if err != nil {
		return fmt.Errorf("appointment: mint receipt: %w", err)
	}
	appt.ReceiptToken = token
	return nil
}

func (s *Service) eventPayload(appt *Appointment, note string) events.AppointmentEvent {
	return events.AppointmentEvent{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Date:          appt.Date.String(),
		Start:         appt.Start.String(),
		End:           appt.End.String(),
		Status:        string(appt.Status),
		Note:          note,
	}
}

func (s *Service) invalidate(ctx context.Context, doctorID uuid.UUID, dates ...Date) {
	if s.cache == nil {
		return
	}
	for _, d := range dates {
		s.cache.Invalidate(ctx, doctorID, d)
	}
}

func isParty(caller identity.Caller, appt *Appointment) bool {
	return caller.ID == appt.PatientID || caller.ID == appt.DoctorID
}
