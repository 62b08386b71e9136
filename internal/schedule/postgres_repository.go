package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docktorek/docktorek-api/internal/interval"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores availability windows in the relational database.
type PostgresRepository struct {
	q querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("schedule: pgx pool required")
	}
	return &PostgresRepository{q: pool}
}

func newPostgresRepositoryWithQuerier(q querier) *PostgresRepository {
	return &PostgresRepository{q: q}
}

func timeOfDayToPg(t interval.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * 60 * 1_000_000, Valid: true}
}

func timeOfDayFromPg(t pgtype.Time) interval.TimeOfDay {
	return interval.TimeOfDay(t.Microseconds / (60 * 1_000_000))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a new window row.
func (r *PostgresRepository) Create(ctx context.Context, w *AvailabilityWindow) error {
	query := `
		INSERT INTO doctor_availability (id, doctor_id, day_of_week, start_time, end_time, slot_duration, is_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.q.QueryRow(ctx, query,
		w.ID,
		w.DoctorID,
		string(w.Day),
		timeOfDayToPg(w.Start),
		timeOfDayToPg(w.End),
		w.SlotDuration,
		w.Active,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateWindow
		}
		return fmt.Errorf("schedule: insert window: %w", err)
	}
	return nil
}

// GetByID fetches one window.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*AvailabilityWindow, error) {
	query := `
		SELECT id, doctor_id, day_of_week, start_time, end_time, slot_duration, is_available, created_at, updated_at
		FROM doctor_availability
		WHERE id = $1
	`
	w, err := scanWindow(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWindowNotFound
		}
		return nil, fmt.Errorf("schedule: select window: %w", err)
	}
	return w, nil
}

// Update rewrites a window row and stamps updated_at.
func (r *PostgresRepository) Update(ctx context.Context, w *AvailabilityWindow) error {
	query := `
		UPDATE doctor_availability
		SET day_of_week = $2, start_time = $3, end_time = $4, slot_duration = $5, is_available = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.q.QueryRow(ctx, query,
		w.ID,
		string(w.Day),
		timeOfDayToPg(w.Start),
		timeOfDayToPg(w.End),
		w.SlotDuration,
		w.Active,
	).Scan(&w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrWindowNotFound
		}
		if isUniqueViolation(err) {
			return ErrDuplicateWindow
		}
		return fmt.Errorf("schedule: update window: %w", err)
	}
	return nil
}

// Delete removes a window row. Deletion is immediate; existing appointments
// keep their history.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.q.Exec(ctx, `DELETE FROM doctor_availability WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("schedule: delete window: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrWindowNotFound
	}
	return nil
}

// ListForDoctor returns windows for a doctor, ordered by weekday then start.
func (r *PostgresRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID, filter ListFilter) ([]*AvailabilityWindow, error) {
	query := `
		SELECT id, doctor_id, day_of_week, start_time, end_time, slot_duration, is_available, created_at, updated_at
		FROM doctor_availability
		WHERE doctor_id = $1
		  AND ($2::text IS NULL OR day_of_week = $2)
		  AND ($3::boolean OR is_available)
		ORDER BY day_of_week, start_time
	`
	var day *string
	if filter.Day != nil {
		s := string(*filter.Day)
		day = &s
	}
	rows, err := r.q.Query(ctx, query, doctorID, day, filter.IncludeInactive)
	if err != nil {
		return nil, fmt.Errorf("schedule: list windows: %w", err)
	}
	defer rows.Close()

	var windows []*AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, fmt.Errorf("schedule: scan window: %w", err)
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

func scanWindow(row pgx.Row) (*AvailabilityWindow, error) {
	var (
		w          AvailabilityWindow
		day        string
		start, end pgtype.Time
	)
	if err := row.Scan(
		&w.ID,
		&w.DoctorID,
		&day,
		&start,
		&end,
		&w.SlotDuration,
		&w.Active,
		&w.CreatedAt,
		&w.UpdatedAt,
	); err != nil {
		return nil, err
	}
	w.Day = Weekday(day)
	w.Start = timeOfDayFromPg(start)
	w.End = timeOfDayFromPg(end)
	return &w, nil
}
