package schedule

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ListFilter narrows a window listing.
type ListFilter struct {
	Day             *Weekday
	IncludeInactive bool
}

// Repository defines storage for availability windows.
type Repository interface {
	// Create inserts a window. Returns ErrDuplicateWindow when an entry with
	// the same doctor, weekday and start time exists.
	Create(ctx context.Context, w *AvailabilityWindow) error
	GetByID(ctx context.Context, id uuid.UUID) (*AvailabilityWindow, error)
	// Update rewrites a window. Subject to the same uniqueness rule as Create.
	Update(ctx context.Context, w *AvailabilityWindow) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListForDoctor returns windows ordered by weekday then start time.
	ListForDoctor(ctx context.Context, doctorID uuid.UUID, filter ListFilter) ([]*AvailabilityWindow, error)
}

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu      sync.RWMutex
	windows map[uuid.UUID]*AvailabilityWindow
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{windows: make(map[uuid.UUID]*AvailabilityWindow)}
}

func (r *MemoryRepository) Create(_ context.Context, w *AvailabilityWindow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.windows {
		if existing.DoctorID == w.DoctorID && existing.Day == w.Day && existing.Start == w.Start {
			return ErrDuplicateWindow
		}
	}
	cp := *w
	r.windows[w.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*AvailabilityWindow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.windows[id]
	if !ok {
		return nil, ErrWindowNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *MemoryRepository) Update(_ context.Context, w *AvailabilityWindow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.windows[w.ID]; !ok {
		return ErrWindowNotFound
	}
	for id, existing := range r.windows {
		if id != w.ID && existing.DoctorID == w.DoctorID && existing.Day == w.Day && existing.Start == w.Start {
			return ErrDuplicateWindow
		}
	}
	cp := *w
	r.windows[w.ID] = &cp
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.windows[id]; !ok {
		return ErrWindowNotFound
	}
	delete(r.windows, id)
	return nil
}

func (r *MemoryRepository) ListForDoctor(_ context.Context, doctorID uuid.UUID, filter ListFilter) ([]*AvailabilityWindow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*AvailabilityWindow
	for _, w := range r.windows {
		if w.DoctorID != doctorID {
			continue
		}
		if !filter.IncludeInactive && !w.Active {
			continue
		}
		if filter.Day != nil && w.Day != *filter.Day {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}
