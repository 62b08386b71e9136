package profile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docktorek/docktorek-api/internal/identity"
)

// Repository defines storage for profiles.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	// GetDoctor fetches directory details for a doctor. Returns
	// ErrDoctorNotFound when the id is unknown or belongs to a patient.
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	// ListDoctors returns all doctors ordered by average rating descending.
	ListDoctors(ctx context.Context) ([]*Doctor, error)
	// AddFavorite stores a (patient, doctor) favorite. Returns
	// ErrAlreadyFavorite on a duplicate pair and ErrDoctorNotFound when the
	// doctor id is unknown.
	AddFavorite(ctx context.Context, f *Favorite) error
	// RemoveFavorite deletes the pair, ErrFavoriteNotFound when absent.
	RemoveFavorite(ctx context.Context, patientID, doctorID uuid.UUID) error
	// ListFavorites returns the patient's favorites, newest first, with the
	// doctor's directory entry attached.
	ListFavorites(ctx context.Context, patientID uuid.UUID) ([]*FavoriteListing, error)
}

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu        sync.RWMutex
	profiles  map[uuid.UUID]*Profile
	doctors   map[uuid.UUID]*Doctor
	favorites map[uuid.UUID][]*Favorite
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		profiles:  make(map[uuid.UUID]*Profile),
		doctors:   make(map[uuid.UUID]*Doctor),
		favorites: make(map[uuid.UUID][]*Favorite),
	}
}

// AddPatient seeds a patient profile.
func (r *MemoryRepository) AddPatient(p Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.Role = identity.RolePatient
	r.profiles[p.ID] = &p
}

// AddDoctor seeds a doctor profile.
func (r *MemoryRepository) AddDoctor(d Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.Role = identity.RoleDoctor
	cp := d
	r.profiles[d.ID] = &cp.Profile
	r.doctors[d.ID] = &cp
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) GetDoctor(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryRepository) AddFavorite(_ context.Context, f *Favorite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.doctors[f.DoctorID]; !ok {
		return ErrDoctorNotFound
	}
	for _, existing := range r.favorites[f.PatientID] {
		if existing.DoctorID == f.DoctorID {
			return ErrAlreadyFavorite
		}
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	cp := *f
	r.favorites[f.PatientID] = append(r.favorites[f.PatientID], &cp)
	return nil
}

func (r *MemoryRepository) RemoveFavorite(_ context.Context, patientID, doctorID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	favs := r.favorites[patientID]
	for i, f := range favs {
		if f.DoctorID == doctorID {
			r.favorites[patientID] = append(favs[:i], favs[i+1:]...)
			return nil
		}
	}
	return ErrFavoriteNotFound
}

func (r *MemoryRepository) ListFavorites(_ context.Context, patientID uuid.UUID) ([]*FavoriteListing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	favs := r.favorites[patientID]
	out := make([]*FavoriteListing, 0, len(favs))
	// Newest first, matching the Postgres ordering.
	for i := len(favs) - 1; i >= 0; i-- {
		fcp := *favs[i]
		entry := &FavoriteListing{Favorite: &fcp}
		if d, ok := r.doctors[fcp.DoctorID]; ok {
			dcp := *d
			entry.Doctor = &dcp
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *MemoryRepository) ListDoctors(_ context.Context) ([]*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageRating != out[j].AverageRating {
			return out[i].AverageRating > out[j].AverageRating
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
