package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docktorek/docktorek-api/internal/interval"
)

// ListFilter narrows an appointment listing.
type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *Status
	Date      *Date
}

// Write bundles an appointment mutation with its audit entry and outbox
// event. Implementations persist all three atomically, or nothing.
type Write struct {
	Appointment *Appointment
	Audit       *AuditEntry
	EventType   string
	Event       any
}

// Repository defines storage for appointments. Create and Update re-validate
// overlap against committed state, so two concurrent bookings for the same
// slot cannot both succeed.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// ListActiveForDay returns the busy set: appointments for the doctor and
	// date whose status still occupies the slot, ordered by start time.
	ListActiveForDay(ctx context.Context, doctorID uuid.UUID, date Date) ([]*Appointment, error)
	List(ctx context.Context, filter ListFilter) ([]*Appointment, error)
	// Create inserts a new appointment, failing with ErrSlotConflict when its
	// time range overlaps an active appointment for the same doctor and date.
	Create(ctx context.Context, w Write) error
	// Update persists a mutated appointment. With recheckOverlap it applies
	// the same conflict rule as Create, excluding the appointment itself.
	Update(ctx context.Context, w Write, recheckOverlap bool) error
	ListAudit(ctx context.Context, appointmentID uuid.UUID) ([]*AuditEntry, error)
}

// RecordedEvent is an outbox message captured by the in-memory repository.
type RecordedEvent struct {
	Type    string
	Payload any
}

// MemoryRepository is an in-memory Repository for tests and local runs. A
// single mutex serializes bookings the way the database transaction does.
type MemoryRepository struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*Appointment
	audit        []*AuditEntry
	events       []RecordedEvent
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{appointments: make(map[uuid.UUID]*Appointment)}
}

func (r *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) ListActiveForDay(_ context.Context, doctorID uuid.UUID, date Date) ([]*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeForDayLocked(doctorID, date), nil
}

func (r *MemoryRepository) activeForDayLocked(doctorID uuid.UUID, date Date) []*Appointment {
	var out []*Appointment
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.Date.Time().Equal(date.Time()) && a.Status.Active() {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func (r *MemoryRepository) List(_ context.Context, filter ListFilter) ([]*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Appointment
	for _, a := range r.appointments {
		if filter.PatientID != nil && a.PatientID != *filter.PatientID {
			continue
		}
		if filter.DoctorID != nil && a.DoctorID != *filter.DoctorID {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		if filter.Date != nil && !a.Date.Time().Equal(filter.Date.Time()) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Time().Equal(out[j].Date.Time()) {
			return out[i].Date.Time().After(out[j].Date.Time())
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (r *MemoryRepository) Create(_ context.Context, w Write) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt := w.Appointment
	for _, existing := range r.activeForDayLocked(appt.DoctorID, appt.Date) {
		if interval.Overlaps(appt.Range(), existing.Range()) {
			return ErrSlotConflict
		}
	}
	now := time.Now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	cp := *appt
	r.appointments[appt.ID] = &cp
	r.recordLocked(w)
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, w Write, recheckOverlap bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt := w.Appointment
	if _, ok := r.appointments[appt.ID]; !ok {
		return ErrNotFound
	}
	if recheckOverlap {
		for _, existing := range r.activeForDayLocked(appt.DoctorID, appt.Date) {
			if existing.ID != appt.ID && interval.Overlaps(appt.Range(), existing.Range()) {
				return ErrSlotConflict
			}
		}
	}
	appt.UpdatedAt = time.Now().UTC()
	cp := *appt
	r.appointments[appt.ID] = &cp
	r.recordLocked(w)
	return nil
}

func (r *MemoryRepository) ListAudit(_ context.Context, appointmentID uuid.UUID) ([]*AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*AuditEntry
	for _, e := range r.audit {
		if e.AppointmentID == appointmentID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Events returns the outbox messages recorded so far.
func (r *MemoryRepository) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedEvent(nil), r.events...)
}

func (r *MemoryRepository) recordLocked(w Write) {
	if w.Audit != nil {
		cp := *w.Audit
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		cp.CreatedAt = time.Now().UTC()
		r.audit = append(r.audit, &cp)
	}
	if w.EventType != "" {
		r.events = append(r.events, RecordedEvent{Type: w.EventType, Payload: w.Event})
	}
}
