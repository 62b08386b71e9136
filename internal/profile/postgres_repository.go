package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docktorek/docktorek-api/internal/identity"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores profiles in the relational database.
type PostgresRepository struct {
	q querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("profile: pgx pool required")
	}
	return &PostgresRepository{q: pool}
}

func newPostgresRepositoryWithQuerier(q querier) *PostgresRepository {
	return &PostgresRepository{q: q}
}

// GetByID fetches one profile.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	query := `
		SELECT id, name, email, user_type, created_at
		FROM profiles
		WHERE id = $1
	`
	var (
		p    Profile
		role string
	)
	err := r.q.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Email, &role, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("profile: select profile: %w", err)
	}
	p.Role = identity.Role(role)
	return &p, nil
}

// GetDoctor fetches a doctor with directory details.
func (r *PostgresRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	query := `
		SELECT p.id, p.name, p.email, p.user_type, p.created_at,
		       d.specialty, d.hospital, d.average_rating
		FROM profiles p
		JOIN doctor_profiles d ON d.profile_id = p.id
		WHERE p.id = $1
	`
	d, err := scanDoctor(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("profile: select doctor: %w", err)
	}
	return d, nil
}

// ListDoctors returns all doctors ordered by average rating descending.
func (r *PostgresRepository) ListDoctors(ctx context.Context) ([]*Doctor, error) {
	query := `
		SELECT p.id, p.name, p.email, p.user_type, p.created_at,
		       d.specialty, d.hospital, d.average_rating
		FROM profiles p
		JOIN doctor_profiles d ON d.profile_id = p.id
		ORDER BY d.average_rating DESC, p.name
	`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("profile: list doctors: %w", err)
	}
	defer rows.Close()

	var doctors []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("profile: scan doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

// AddFavorite inserts the (patient, doctor) pair. The unique constraint maps
// to ErrAlreadyFavorite, the doctor foreign key to ErrDoctorNotFound.
func (r *PostgresRepository) AddFavorite(ctx context.Context, f *Favorite) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	query := `
		INSERT INTO favorite_doctors (id, patient_id, doctor_id, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.q.QueryRow(ctx, query, f.ID, f.PatientID, f.DoctorID, f.Notes).Scan(&f.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrAlreadyFavorite
			case "23503":
				return ErrDoctorNotFound
			}
		}
		return fmt.Errorf("profile: insert favorite: %w", err)
	}
	return nil
}

// RemoveFavorite deletes the pair.
func (r *PostgresRepository) RemoveFavorite(ctx context.Context, patientID, doctorID uuid.UUID) error {
	ct, err := r.q.Exec(ctx,
		`DELETE FROM favorite_doctors WHERE patient_id = $1 AND doctor_id = $2`,
		patientID, doctorID,
	)
	if err != nil {
		return fmt.Errorf("profile: delete favorite: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrFavoriteNotFound
	}
	return nil
}

// ListFavorites returns the patient's favorites with doctor details, newest
// first.
func (r *PostgresRepository) ListFavorites(ctx context.Context, patientID uuid.UUID) ([]*FavoriteListing, error) {
	query := `
		SELECT f.id, f.patient_id, f.doctor_id, f.notes, f.created_at,
		       p.id, p.name, p.email, p.user_type, p.created_at,
		       d.specialty, d.hospital, d.average_rating
		FROM favorite_doctors f
		JOIN profiles p ON p.id = f.doctor_id
		JOIN doctor_profiles d ON d.profile_id = f.doctor_id
		WHERE f.patient_id = $1
		ORDER BY f.created_at DESC
	`
	rows, err := r.q.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("profile: list favorites: %w", err)
	}
	defer rows.Close()

	var out []*FavoriteListing
	for rows.Next() {
		var (
			f    Favorite
			d    Doctor
			role string
		)
		if err := rows.Scan(
			&f.ID, &f.PatientID, &f.DoctorID, &f.Notes, &f.CreatedAt,
			&d.ID, &d.Name, &d.Email, &role, &d.CreatedAt,
			&d.Specialty, &d.Hospital, &d.AverageRating,
		); err != nil {
			return nil, fmt.Errorf("profile: scan favorite: %w", err)
		}
		d.Role = identity.Role(role)
		out = append(out, &FavoriteListing{Favorite: &f, Doctor: &d})
	}
	return out, rows.Err()
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var (
		d    Doctor
		role string
	)
	if err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Email,
		&role,
		&d.CreatedAt,
		&d.Specialty,
		&d.Hospital,
		&d.AverageRating,
	); err != nil {
		return nil, err
	}
	d.Role = identity.Role(role)
	return &d, nil
}
